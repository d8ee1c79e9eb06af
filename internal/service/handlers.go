package service

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"profileagent/internal/chain"
	"profileagent/internal/env"
	"profileagent/internal/metrics"
	"profileagent/internal/store"
	"profileagent/internal/train"
)

// executeTimeout bounds one relay submission including confirmation wait.
const executeTimeout = 60 * time.Second

// #region request-types

// RecommendRequest carries a profile's current metrics in actual units.
type RecommendRequest struct {
	ProfileAddress string  `json:"profile_address" binding:"required,chainaddr"`
	Followers      float64 `json:"followers" binding:"gte=0"`
	PostsCount     float64 `json:"posts_count" binding:"gte=0"`
	EngagementRate float64 `json:"engagement_rate" binding:"gte=0"`
}

// ExecuteRequest names the action to perform and its parameters. Target
// selection is the caller's responsibility; the service never invents one.
type ExecuteRequest struct {
	ProfileAddress string `json:"profile_address" binding:"required,chainaddr"`
	ActionID       *int   `json:"action_id" binding:"required,actionid"`
	TargetAddress  string `json:"target_address" binding:"omitempty,chainaddr"`
	ContentRef     string `json:"content_ref"`
	AmountWei      string `json:"amount_wei" binding:"omitempty,weiamount"`
}

// #endregion request-types

// #region health

// HealthCheck reports liveness.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// #endregion health

// #region recommend

// Recommend computes an observation from the supplied metrics and asks the
// current policy for an action. Pure and side-effect free: no network I/O,
// no state mutation beyond the audit row.
func Recommend(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RecommendRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
			return
		}

		state := metrics.State{
			Followers:  req.Followers,
			Posts:      req.PostsCount,
			Engagement: req.EngagementRate,
		}
		obs := state.Normalize(deps.Limits)

		p, fallback := deps.Holder.Current()
		action, confidence := p.Predict(obs, true)

		source := "model"
		if fallback {
			source = "fallback"
		}

		if err := deps.Store.LogDecision(store.DecisionRecord{
			Profile: req.ProfileAddress,
			Kind:    store.KindRecommend,
			Action:  int(action),
			Source:  source,
			Status:  store.DecisionOK,
		}); err != nil {
			deps.Logger.Warn("decision audit failed", "error", err)
		}

		c.JSON(http.StatusOK, gin.H{
			"action_id":   int(action),
			"action_name": action.DisplayName(),
			"confidence":  confidence,
			"source":      source,
		})
	}
}

// #endregion recommend

// #region recommend-live

// fetchTimeout bounds the metrics read behind a live recommendation.
const fetchTimeout = 10 * time.Second

// RecommendLive fetches the profile's current metrics from the chain-side
// source and recommends from those, for callers that do not track metrics
// themselves. Same response shape as Recommend, plus the observed metrics.
func RecommendLive(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		addr := c.Param("address")
		if !addressPattern.MatchString(addr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid profile address"})
			return
		}

		effect := env.DefaultEffectConfig()
		effect.Limits = deps.Limits
		live := env.NewLive(effect, deps.Metrics, addr)

		ctx, cancel := context.WithTimeout(c.Request.Context(), fetchTimeout)
		defer cancel()
		obs, info, err := live.Reset(ctx)
		if err != nil {
			if errors.Is(err, chain.ErrUnavailable) {
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		p, fallback := deps.Holder.Current()
		action, confidence := p.Predict(obs, true)

		source := "model"
		if fallback {
			source = "fallback"
		}

		if err := deps.Store.LogDecision(store.DecisionRecord{
			Profile: addr,
			Kind:    store.KindRecommend,
			Action:  int(action),
			Source:  source,
			Status:  store.DecisionOK,
		}); err != nil {
			deps.Logger.Warn("decision audit failed", "error", err)
		}

		c.JSON(http.StatusOK, gin.H{
			"action_id":   int(action),
			"action_name": action.DisplayName(),
			"confidence":  confidence,
			"source":      source,
			"metrics": gin.H{
				"followers":       info.Metrics.Followers,
				"posts_count":     info.Metrics.Posts,
				"engagement_rate": info.Metrics.Engagement,
			},
		})
	}
}

// #endregion recommend-live

// #region execute

// Execute performs the named action through the executor. Per-action
// parameters are validated before the executor is touched; executor
// failures map onto the error taxonomy: unavailable -> 503, rejected ->
// 400, anything else -> 500. No internal retry.
func Execute(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ExecuteRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
			return
		}
		action := env.Action(*req.ActionID)

		if msg := missingParam(action, req); msg != "" {
			audit(deps, req, action, store.DecisionClientError, msg)
			c.JSON(http.StatusBadRequest, gin.H{"error": msg})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), executeTimeout)
		defer cancel()

		var receipt chain.Receipt
		var err error
		switch action {
		case env.ActionPost:
			receipt, err = deps.Executor.MakePost(ctx, req.ProfileAddress, req.ContentRef)
		case env.ActionFollow:
			receipt, err = deps.Executor.FollowProfile(ctx, req.ProfileAddress, req.TargetAddress)
		case env.ActionReward:
			receipt, err = deps.Executor.RewardFollower(ctx, req.ProfileAddress, req.TargetAddress, req.AmountWei)
		}

		switch {
		case err == nil:
			audit(deps, req, action, store.DecisionOK, receipt.TxHash)
			c.JSON(http.StatusOK, gin.H{
				"status":    "success",
				"action_id": int(action),
				"receipt":   receipt,
			})
		case errors.Is(err, chain.ErrUnavailable):
			audit(deps, req, action, store.DecisionUnavailable, err.Error())
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		case errors.Is(err, chain.ErrRejected):
			audit(deps, req, action, store.DecisionRejected, err.Error())
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			deps.Logger.Error("execution failed", "action", action.Name(), "error", err)
			audit(deps, req, action, store.DecisionError, err.Error())
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
	}
}

// missingParam returns a client-error message when a required action
// parameter is absent.
func missingParam(action env.Action, req ExecuteRequest) string {
	switch action {
	case env.ActionPost:
		if req.ContentRef == "" {
			return "content_ref required for post"
		}
	case env.ActionFollow:
		if req.TargetAddress == "" {
			return "target_address required for follow"
		}
	case env.ActionReward:
		if req.TargetAddress == "" || req.AmountWei == "" {
			return "target_address and amount_wei required for reward"
		}
	}
	return ""
}

func audit(deps Deps, req ExecuteRequest, action env.Action, status, detail string) {
	if err := deps.Store.LogDecision(store.DecisionRecord{
		Profile: req.ProfileAddress,
		Kind:    store.KindExecute,
		Action:  int(action),
		Source:  "caller",
		Status:  status,
		Detail:  detail,
	}); err != nil {
		deps.Logger.Warn("decision audit failed", "error", err)
	}
}

// #endregion execute

// #region stats

// Stats serves decay-weighted training aggregates plus the active run.
func Stats(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := deps.Store.Stats()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		resp := gin.H{
			"episodes":    stats.Episodes,
			"mean_reward": stats.MeanReward,
			"action_share": gin.H{
				"post":   stats.ActionShare[0],
				"follow": stats.ActionShare[1],
				"reward": stats.ActionShare[2],
			},
			"training": deps.Trainer.Running(),
		}
		if run, err := deps.Store.ActiveRun(); err == nil {
			resp["active_run"] = gin.H{
				"run_id":      run.ID,
				"steps":       run.Steps,
				"episodes":    run.Episodes,
				"mean_reward": run.MeanReward,
				"finished_at": run.FinishedAt,
			}
		}
		c.JSON(http.StatusOK, resp)
	}
}

// #endregion stats

// #region train

// Train launches a background training run and swaps the policy holder on
// success. At most one run at a time; a second request gets 409. The run
// executes on the process-lifetime context supplied through Deps, so a
// shutdown cancels it and the run row finishes as canceled rather than
// being orphaned in the running state.
func Train(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		if deps.Trainer.Running() {
			c.JSON(http.StatusConflict, gin.H{"error": "training already in progress"})
			return
		}

		deps.StartTraining(func(ctx context.Context) {
			p, run, err := deps.Trainer.Run(ctx)
			if err != nil {
				switch {
				case errors.Is(err, train.ErrAlreadyRunning):
				case errors.Is(err, context.Canceled):
					deps.Logger.Info("background training canceled", "run_id", run.ID)
				default:
					deps.Logger.Error("background training failed", "error", err)
				}
				return
			}
			deps.Holder.Swap(p)
			deps.Logger.Info("policy retrained",
				"run_id", run.ID, "episodes", run.Episodes, "mean_reward", run.MeanReward)
		})

		c.JSON(http.StatusAccepted, gin.H{"status": "training started"})
	}
}

// #endregion train
