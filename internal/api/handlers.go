package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	apierrors "github.com/peerflow/p2pmatch/common/errors"
	"github.com/peerflow/p2pmatch/internal/matching"
	"github.com/peerflow/p2pmatch/internal/matching/model"
	"github.com/peerflow/p2pmatch/internal/matching/optimization"
)

// enqueueRequest is the wire shape for adding a queue item. Amounts travel
// as strings to keep minor-unit precision intact.
type enqueueRequest struct {
	CustomerID  string          `json:"customer_id" binding:"required"`
	Amount      string          `json:"amount" binding:"required"`
	PaymentType string          `json:"payment_type" binding:"required"`
	Priority    int             `json:"priority"`
	Criteria    criteriaRequest `json:"matching_criteria"`
}

type criteriaRequest struct {
	PreferredPaymentTypes []string `json:"preferred_payment_types"`
	AmountTolerance       string   `json:"amount_tolerance"`
	TimePreference        string   `json:"time_preference"`
	RiskProfile           string   `json:"risk_profile"`
}

type enqueueResponse struct {
	Item  *model.QueueItem `json:"item"`
	Match *model.MatchPair `json:"match,omitempty"`
}

func (s *Server) handleAddWithdrawal(c *gin.Context) {
	s.handleAddItem(c, model.SideWithdrawal)
}

func (s *Server) handleAddDeposit(c *gin.Context) {
	s.handleAddItem(c, model.SideDeposit)
}

func (s *Server) handleAddItem(c *gin.Context, side model.Side) {
	var req enqueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.HandleError(c, bindingToValidation(err))
		return
	}
	addReq, err := toAddItemRequest(req)
	if err != nil {
		apierrors.HandleError(c, err)
		return
	}

	item, pair, err := s.engine.AddItem(c.Request.Context(), side, addReq)
	if err != nil {
		apierrors.HandleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, enqueueResponse{Item: item, Match: pair})
}

func (s *Server) handleCancel(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		apierrors.HandleError(c, model.NewValidationError("id", "must be a valid uuid"))
		return
	}
	if err := s.engine.Cancel(c.Request.Context(), id); err != nil {
		apierrors.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleListItems(c *gin.Context) {
	var f model.ListFilter
	if v := c.Query("side"); v != "" {
		side := model.Side(v)
		if !side.Valid() {
			apierrors.HandleError(c, model.NewValidationError("side", "must be withdrawal or deposit"))
			return
		}
		f.Side = &side
	}
	if v := c.Query("status"); v != "" {
		st := model.Status(v)
		f.Status = &st
	}
	f.CustomerID = c.Query("customer_id")
	if v := c.Query("limit"); v != "" {
		limit, err := parsePositiveInt(v)
		if err != nil {
			apierrors.HandleError(c, model.NewValidationError("limit", "must be a positive integer"))
			return
		}
		f.Limit = limit
	}

	items, err := s.engine.Items(c.Request.Context(), f)
	if err != nil {
		apierrors.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}

func (s *Server) handleQueueStats(c *gin.Context) {
	window := time.Duration(0)
	if v := c.Query("window"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			apierrors.HandleError(c, model.NewValidationError("window", "must be a positive duration such as 24h"))
			return
		}
		window = d
	}
	st, err := s.aggregator.EnhancedQueueStats(c.Request.Context(), window)
	if err != nil {
		apierrors.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) handleGetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, s.controller.Config())
}

func (s *Server) handlePatchConfig(c *gin.Context) {
	var patch optimization.Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		apierrors.HandleError(c, bindingToValidation(err))
		return
	}
	cfg, err := s.controller.Update(patch)
	if err != nil {
		apierrors.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

type performanceMetricRequest struct {
	Operation  string  `json:"operation" binding:"required"`
	DurationMs float64 `json:"duration_ms" binding:"gte=0"`
	Success    bool    `json:"success"`
}

func (s *Server) handleRecordMetric(c *gin.Context) {
	var req performanceMetricRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.HandleError(c, bindingToValidation(err))
		return
	}
	s.recorder.Record(req.Operation, time.Duration(req.DurationMs*float64(time.Millisecond)), req.Success)
	c.Status(http.StatusAccepted)
}

func (s *Server) handlePatternMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, s.aggregator.PatternSystemMetrics())
}

// toAddItemRequest parses the wire DTO into the engine request, surfacing
// decimal parse failures as field-addressed validation errors.
func toAddItemRequest(req enqueueRequest) (matching.AddItemRequest, error) {
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return matching.AddItemRequest{}, model.NewValidationError("amount", "must be a decimal number")
	}
	tolerance := decimal.Zero
	if req.Criteria.AmountTolerance != "" {
		tolerance, err = decimal.NewFromString(req.Criteria.AmountTolerance)
		if err != nil {
			return matching.AddItemRequest{}, model.NewValidationError("matching_criteria.amount_tolerance", "must be a decimal number")
		}
	}
	prefs := make([]model.PaymentType, 0, len(req.Criteria.PreferredPaymentTypes))
	for _, t := range req.Criteria.PreferredPaymentTypes {
		prefs = append(prefs, model.PaymentType(t))
	}
	return matching.AddItemRequest{
		CustomerID:  req.CustomerID,
		Amount:      amount,
		PaymentType: model.PaymentType(req.PaymentType),
		Priority:    req.Priority,
		Criteria: model.MatchingCriteria{
			PreferredPaymentTypes: prefs,
			AmountTolerance:       tolerance,
			TimePreference:        model.TimePreference(req.Criteria.TimePreference),
			RiskProfile:           model.RiskProfile(req.Criteria.RiskProfile),
		},
	}, nil
}

// bindingToValidation converts gin/validator binding failures into the
// domain validation error so the RFC 7807 mapping stays uniform.
func bindingToValidation(err error) error {
	var vErrs validator.ValidationErrors
	if errors.As(err, &vErrs) && len(vErrs) > 0 {
		fe := vErrs[0]
		return model.NewValidationError(fe.Field(), "failed "+fe.Tag()+" validation")
	}
	return model.NewValidationError("body", "malformed request body")
}

func parsePositiveInt(v string) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, errors.New("not positive")
	}
	return n, nil
}
