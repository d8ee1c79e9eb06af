package service

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"profileagent/internal/chain"
	"profileagent/internal/env"
	"profileagent/internal/metrics"
	"profileagent/internal/policy"
	"profileagent/internal/store"
	"profileagent/internal/train"
)

// #region deps

// Deps bundles everything the HTTP layer needs.
type Deps struct {
	Holder   *policy.Holder
	Limits   metrics.Limits
	Executor chain.Executor
	Metrics  env.MetricsSource
	Store    *store.Store
	Trainer  *train.Trainer
	Logger   *slog.Logger

	// StartTraining runs fn on a context tied to the process lifetime.
	// The owner cancels that context on shutdown and waits for fn to
	// return before tearing down shared resources, so an in-flight run
	// finishes as canceled instead of dying on a closed store.
	StartTraining func(fn func(ctx context.Context))
}

// #endregion deps

// #region validators

var (
	addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
	weiPattern     = regexp.MustCompile(`^[0-9]+$`)
)

// registerValidators installs the custom binding rules on gin's validator
// engine: chainaddr for profile/target addresses, actionid for the discrete
// action space, and weiamount for decimal wei strings.
func registerValidators() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	mustRegister(v, "chainaddr", func(fl validator.FieldLevel) bool {
		return addressPattern.MatchString(fl.Field().String())
	})
	mustRegister(v, "actionid", func(fl validator.FieldLevel) bool {
		id := fl.Field().Int()
		return id >= 0 && id <= 2
	})
	mustRegister(v, "weiamount", func(fl validator.FieldLevel) bool {
		return weiPattern.MatchString(fl.Field().String())
	})
}

// mustRegister panics on registration failure, which only happens for a bad
// tag name and would otherwise silently disable the rule.
func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register %s rule: %v", tag, err))
	}
}

// #endregion validators

// #region router

// NewRouter wires all routes.
func NewRouter(deps Deps) *gin.Engine {
	registerValidators()

	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", HealthCheck)

	v1 := router.Group("/v1")
	{
		v1.POST("/recommend", Recommend(deps))
		v1.GET("/recommend/:address", RecommendLive(deps))
		v1.POST("/execute", Execute(deps))
		v1.GET("/stats", Stats(deps))
		v1.POST("/train", Train(deps))
	}
	return router
}

// #endregion router
