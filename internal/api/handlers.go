package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/filswan/go-swan-lib/logs"
	"github.com/gin-gonic/gin"

	"github.com/lagrangedao/go-computing-market/constants"
	"github.com/lagrangedao/go-computing-market/internal/market"
	"github.com/lagrangedao/go-computing-market/internal/metrics"
	"github.com/lagrangedao/go-computing-market/internal/models"
	"github.com/lagrangedao/go-computing-market/util"
)

// SubmitJobBody is the body of POST /jobs. Funds name the amount to escrow out of
// the sender's deposit balance.
type SubmitJobBody struct {
	models.SubmitJobReq
	Funds []models.Coin `json:"funds"`
}

// dispatch runs one market operation on behalf of the authenticated sender and
// settles whatever it declared once it is committed.
func (s *Server) dispatch(c *gin.Context, action string, op func(now time.Time, info market.MsgInfo) (*models.Response, error)) {
	s.dispatchInfo(c, action, senderInfo(c), op)
}

func (s *Server) dispatchInfo(c *gin.Context, action string, info market.MsgInfo, op func(now time.Time, info market.MsgInfo) (*models.Response, error)) {
	now := s.now()
	resp, err := op(now, info)
	metrics.RecordOperation(action, resp, err)
	if err != nil {
		writeError(c, err)
		return
	}

	s.settle(c, resp)
	s.events.Publish(resp, c.GetString(requestIDKey), now)
	c.JSON(http.StatusOK, util.CreateSuccessResponse(resp))
}

func (s *Server) settle(c *gin.Context, resp *models.Response) {
	if len(resp.Transfers) == 0 {
		return
	}
	_, err := s.market.SettleTransfers(s.settler, resp.Transfers)
	metrics.RecordSettlement(err)
	if err != nil {
		// the ledger change stands; what was not dispatched stays pending for the sweeper
		logs.GetLogger().Errorf("settlement of %s incomplete, request_id: %s, error: %+v",
			resp.Action, c.GetString(requestIDKey), err)
	}
}

func (s *Server) registerProvider(c *gin.Context) {
	var req models.RegisterProviderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, util.JsonError, err)
		return
	}
	s.dispatch(c, "register_provider", func(now time.Time, info market.MsgInfo) (*models.Response, error) {
		return s.market.RegisterProvider(now, info, req)
	})
}

func (s *Server) heartbeat(c *gin.Context) {
	s.dispatch(c, "heartbeat", s.market.Heartbeat)
}

func (s *Server) updateProvider(c *gin.Context) {
	var req models.UpdateProviderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, util.JsonError, err)
		return
	}
	s.dispatch(c, "update_provider", func(_ time.Time, info market.MsgInfo) (*models.Response, error) {
		return s.market.UpdateProvider(info, req)
	})
}

func (s *Server) updateProviderStatus(c *gin.Context) {
	var req models.ProviderStatusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, util.JsonError, err)
		return
	}
	s.dispatch(c, "update_provider_status", func(now time.Time, info market.MsgInfo) (*models.Response, error) {
		return s.market.UpdateProviderStatus(now, info, req.Active)
	})
}

func (s *Server) submitJob(c *gin.Context) {
	var body SubmitJobBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, util.JsonError, err)
		return
	}
	info := senderInfo(c)
	info.Funds = body.Funds
	s.dispatchInfo(c, "submit_job", info, func(now time.Time, info market.MsgInfo) (*models.Response, error) {
		return s.market.SubmitJob(now, info, body.SubmitJobReq)
	})
}

func (s *Server) deposit(c *gin.Context) {
	var req models.DepositReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, util.JsonError, err)
		return
	}
	s.dispatch(c, "deposit", func(now time.Time, info market.MsgInfo) (*models.Response, error) {
		return s.market.Deposit(now, info, req)
	})
}

func (s *Server) withdraw(c *gin.Context) {
	var req models.WithdrawReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, util.JsonError, err)
		return
	}
	s.dispatch(c, "withdraw", func(_ time.Time, info market.MsgInfo) (*models.Response, error) {
		return s.market.Withdraw(info, req)
	})
}

func (s *Server) completeJob(c *gin.Context) {
	id, ok := jobIDParam(c)
	if !ok {
		return
	}
	var req models.CompleteJobReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, util.JsonError, err)
		return
	}
	s.dispatch(c, "complete_job", func(now time.Time, info market.MsgInfo) (*models.Response, error) {
		return s.market.CompleteJob(now, info, id, req)
	})
}

func (s *Server) failJob(c *gin.Context) {
	id, ok := jobIDParam(c)
	if !ok {
		return
	}
	var req models.FailJobReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, util.JsonError, err)
		return
	}
	s.dispatch(c, "fail_job", func(now time.Time, info market.MsgInfo) (*models.Response, error) {
		return s.market.FailJob(now, info, id, req)
	})
}

func (s *Server) cancelJob(c *gin.Context) {
	id, ok := jobIDParam(c)
	if !ok {
		return
	}
	s.dispatch(c, "cancel_job", func(now time.Time, info market.MsgInfo) (*models.Response, error) {
		return s.market.CancelJob(now, info, id)
	})
}

func (s *Server) sweepTimeouts(c *gin.Context) {
	s.dispatch(c, "process_timed_out_jobs", func(now time.Time, _ market.MsgInfo) (*models.Response, error) {
		return s.market.SweepTimeouts(now)
	})
}

func (s *Server) sweepProviders(c *gin.Context) {
	s.dispatch(c, "process_inactive_providers", func(now time.Time, _ market.MsgInfo) (*models.Response, error) {
		return s.market.SweepInactive(now)
	})
}

func (s *Server) updateConfig(c *gin.Context) {
	var req models.UpdateConfigReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, util.JsonError, err)
		return
	}
	s.dispatch(c, "update_config", func(_ time.Time, info market.MsgInfo) (*models.Response, error) {
		return s.market.UpdateConfig(info, req)
	})
}

func (s *Server) pause(c *gin.Context) {
	s.dispatch(c, "pause", func(_ time.Time, info market.MsgInfo) (*models.Response, error) {
		return s.market.Pause(info)
	})
}

func (s *Server) unpause(c *gin.Context) {
	s.dispatch(c, "unpause", func(_ time.Time, info market.MsgInfo) (*models.Response, error) {
		return s.market.Unpause(info)
	})
}

func (s *Server) getProvider(c *gin.Context) {
	provider, err := s.market.GetProvider(c.Param("address"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, util.CreateSuccessResponse(provider))
}

func (s *Server) providerStats(c *gin.Context) {
	stats, err := s.market.GetProviderStats(c.Param("address"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, util.CreateSuccessResponse(stats))
}

func (s *Server) listProviders(c *gin.Context) {
	limit, ok := limitQuery(c)
	if !ok {
		return
	}
	startAfter := c.Query("start_after")
	providers, err := s.market.ListProviders(startAfter, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, util.CreatePageResponse(providers, &util.PageInfo{
		StartAfter: startAfter,
		Limit:      limit,
		Count:      len(providers),
	}))
}

func (s *Server) listActiveProviders(c *gin.Context) {
	providers, err := s.market.ListActiveProviders()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, util.CreateSuccessResponse(providers))
}

func (s *Server) providerJobs(c *gin.Context) {
	s.listJobs(c, s.market.ListJobsByProvider)
}

func (s *Server) clientJobs(c *gin.Context) {
	s.listJobs(c, s.market.ListJobsByClient)
}

func (s *Server) listJobs(c *gin.Context, list func(address string, startAfter uint64, limit uint32) ([]*models.Job, error)) {
	limit, ok := limitQuery(c)
	if !ok {
		return
	}
	var startAfter uint64
	if raw := c.Query("start_after"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			badRequest(c, util.BadParamError, fmt.Errorf("invalid start_after %q", raw))
			return
		}
		startAfter = v
	}

	jobs, err := list(c.Param("address"), startAfter, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, util.CreatePageResponse(jobs, &util.PageInfo{
		StartAfter: c.Query("start_after"),
		Limit:      limit,
		Count:      len(jobs),
	}))
}

func (s *Server) getJob(c *gin.Context) {
	id, ok := jobIDParam(c)
	if !ok {
		return
	}
	job, err := s.market.GetJob(id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, util.CreateSuccessResponse(job))
}

func (s *Server) balance(c *gin.Context) {
	balance, err := s.market.GetBalance(c.Param("address"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, util.CreateSuccessResponse(balance))
}

func (s *Server) pendingSettlements(c *gin.Context) {
	limit, ok := limitQuery(c)
	if !ok {
		return
	}
	if limit == 0 || limit > constants.MAX_SETTLEMENT_PAGE_LIMIT {
		limit = constants.MAX_SETTLEMENT_PAGE_LIMIT
	}
	pending, err := s.market.PendingSettlements(int(limit))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, util.CreatePageResponse(pending, &util.PageInfo{
		Limit: limit,
		Count: len(pending),
	}))
}

func (s *Server) getConfig(c *gin.Context) {
	cfg, err := s.market.GetConfig()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, util.CreateSuccessResponse(cfg))
}

func (s *Server) escrow(c *gin.Context) {
	report, err := s.market.CheckInvariants()
	if err != nil {
		writeError(c, err)
		return
	}
	metrics.RecordReport(report)
	c.JSON(http.StatusOK, util.CreateSuccessResponse(report))
}

func jobIDParam(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, util.BadParamError, fmt.Errorf("invalid job id %q", c.Param("id")))
		return 0, false
	}
	return id, true
}

func limitQuery(c *gin.Context) (uint32, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, true
	}
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		badRequest(c, util.BadParamError, fmt.Errorf("invalid limit %q", raw))
		return 0, false
	}
	return uint32(v), true
}
