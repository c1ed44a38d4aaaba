// Package api exposes the claim, stake, reputation and explorer operations
// over a POST JSON interface.
package api

import (
	"errors"
	"net/http"

	"cosmossdk.io/log"
	"github.com/gin-gonic/gin"

	"github.com/veristake/veristake/claim"
	"github.com/veristake/veristake/explorer"
	"github.com/veristake/veristake/ledger"
	"github.com/veristake/veristake/reputation"
	"github.com/veristake/veristake/stake"
	"github.com/veristake/veristake/store"
)

type Service struct {
	engine     *gin.Engine
	logger     log.Logger
	lc         *claim.Lifecycle
	rep        *reputation.Engine
	index      *explorer.Index
	st         *store.Store
	listenAddr string
}

func NewService(listenAddr string, lc *claim.Lifecycle, rep *reputation.Engine, index *explorer.Index, st *store.Store, logger log.Logger) *Service {
	gin.SetMode(gin.ReleaseMode)
	r := gin.Default()
	s := &Service{
		engine:     r,
		logger:     logger.With("module", "api"),
		lc:         lc,
		rep:        rep,
		index:      index,
		st:         st,
		listenAddr: listenAddr,
	}
	s.engine.POST("/createClaim", s.handleCreateClaim)
	s.engine.POST("/placeStake", s.handlePlaceStake)
	s.engine.POST("/getClaims", s.handleGetClaims)
	s.engine.POST("/getClaim", s.handleGetClaim)
	s.engine.POST("/getProfile", s.handleGetProfile)
	s.engine.POST("/getLeaderboard", s.handleGetLeaderboard)
	s.engine.POST("/getTransaction", s.handleGetTransaction)
	return s
}

func (s *Service) Start() error {
	s.logger.Info("api listening", "addr", s.listenAddr)
	return s.engine.Run(s.listenAddr)
}

// errStatus maps core errors onto HTTP statuses. Caller mistakes are 4xx,
// ledger trouble is 502, anything unexpected is 500.
func errStatus(err error) int {
	switch {
	case errors.Is(err, ledger.ErrInvalidAddress),
		errors.Is(err, claim.ErrContentLength),
		errors.Is(err, stake.ErrInsufficientStake):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, ledger.ErrSigningDeclined):
		return http.StatusForbidden
	case errors.Is(err, stake.ErrDuplicateStake),
		errors.Is(err, stake.ErrAuthorStake),
		errors.Is(err, stake.ErrClaimNotAcceptingStakes),
		errors.Is(err, store.ErrAlreadyResolved):
		return http.StatusConflict
	case errors.Is(err, stake.ErrConfirmationPending):
		return http.StatusAccepted
	case errors.Is(err, store.ErrNotFound), errors.Is(err, explorer.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrLedgerUnreachable),
		errors.Is(err, ledger.ErrSubmissionRejected),
		errors.Is(err, ledger.ErrConfirmationTimeout),
		errors.Is(err, explorer.ErrLookupFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Service) fail(c *gin.Context, err error) {
	c.JSON(errStatus(err), gin.H{"error": err.Error()})
}

func parseSide(side string) (uint64, error) {
	switch side {
	case "support":
		return store.SideSupport, nil
	case "oppose":
		return store.SideOppose, nil
	default:
		return 0, errors.New("side must be support or oppose")
	}
}

func sideName(side uint64) string {
	if side == store.SideOppose {
		return "oppose"
	}
	return "support"
}

func outcomeName(outcome uint64) string {
	switch outcome {
	case store.OutcomeSupport:
		return "support"
	case store.OutcomeOppose:
		return "oppose"
	case store.OutcomeTie:
		return "tie"
	default:
		return ""
	}
}

// ClaimInfo is a claim with its read-time projection attached.
type ClaimInfo struct {
	Id                string  `json:"id"`
	Author            string  `json:"author"`
	Content           string  `json:"content"`
	OriginalStake     float64 `json:"originalStake"`
	TotalStaked       float64 `json:"totalStaked"`
	VerificationCount uint64  `json:"verificationCount"`
	Status            string  `json:"status"`
	Outcome           string  `json:"outcome,omitempty"`
	Degraded          bool    `json:"degraded,omitempty"`
	SupportTotal      float64 `json:"supportTotal"`
	OpposeTotal       float64 `json:"opposeTotal"`
	SupportCount      int     `json:"supportCount"`
	OpposeCount       int     `json:"opposeCount"`
	LedgerTxId        string  `json:"ledgerTxId,omitempty"`
	CreateTimestamp   int64   `json:"createTimestamp"`
	ExpireTimestamp   int64   `json:"expireTimestamp"`
	SettleTimestamp   int64   `json:"settleTimestamp,omitempty"`
}

func (s *Service) claimInfo(c *store.Claim) (ClaimInfo, error) {
	tally, err := s.lc.ComputeTally(c.Id)
	if err != nil {
		return ClaimInfo{}, err
	}
	return ClaimInfo{
		Id:                c.Id,
		Author:            c.Author,
		Content:           c.Content,
		OriginalStake:     ledger.Amount(c.OriginalStake).Units(),
		TotalStaked:       ledger.Amount(c.TotalStaked).Units(),
		VerificationCount: c.VerificationCount,
		Status:            claim.DisplayStatus(c, tally),
		Outcome:           outcomeName(c.Outcome),
		Degraded:          c.Degraded,
		SupportTotal:      tally.SupportTotal.Units(),
		OpposeTotal:       tally.OpposeTotal.Units(),
		SupportCount:      tally.SupportCount,
		OpposeCount:       tally.OpposeCount,
		LedgerTxId:        c.LedgerTxId,
		CreateTimestamp:   c.CreateTimestamp,
		ExpireTimestamp:   c.ExpireTimestamp,
		SettleTimestamp:   c.SettleTimestamp,
	}, nil
}

type CreateClaimReq struct {
	Author  string  `json:"author"`
	Content string  `json:"content"`
	Stake   float64 `json:"stake"`
}

func (s *Service) handleCreateClaim(c *gin.Context) {
	var requestData CreateClaimReq
	if err := c.ShouldBindJSON(&requestData); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	created, err := s.lc.Create(c.Request.Context(), requestData.Author, requestData.Content, ledger.Units(requestData.Stake))
	if err != nil {
		s.fail(c, err)
		return
	}
	info, err := s.claimInfo(created)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

type PlaceStakeReq struct {
	ClaimId string  `json:"claimId"`
	Staker  string  `json:"staker"`
	Side    string  `json:"side"`
	Stake   float64 `json:"stake"`
}

type PlaceStakeResponse struct {
	ClaimId string  `json:"claimId"`
	Staker  string  `json:"staker"`
	Side    string  `json:"side"`
	Stake   float64 `json:"stake"`
	TxId    string  `json:"txId"`
}

func (s *Service) handlePlaceStake(c *gin.Context) {
	var requestData PlaceStakeReq
	if err := c.ShouldBindJSON(&requestData); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	side, err := parseSide(requestData.Side)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	placed, err := s.lc.PlaceStake(c.Request.Context(), requestData.ClaimId, requestData.Staker, side, ledger.Units(requestData.Stake))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, PlaceStakeResponse{
		ClaimId: placed.ClaimId,
		Staker:  placed.Staker,
		Side:    sideName(placed.Side),
		Stake:   ledger.Amount(placed.Amount).Units(),
		TxId:    placed.TxId,
	})
}

type GetClaimsReq struct {
	Author   string `json:"author"`
	Page     int    `json:"page"`
	PageSize int    `json:"pageSize"`
}

type GetClaimsResponse struct {
	Claims []ClaimInfo `json:"claims"`
	Total  uint64      `json:"total"`
}

func (s *Service) handleGetClaims(c *gin.Context) {
	var response GetClaimsResponse
	response.Claims = make([]ClaimInfo, 0)
	var requestData GetClaimsReq
	if err := c.ShouldBindJSON(&requestData); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if requestData.PageSize <= 0 {
		requestData.PageSize = 20
	}

	var claims []store.Claim
	var total uint64
	var err error
	if requestData.Author != "" {
		claims, total, err = s.st.GetClaimsByAuthor(requestData.Author, requestData.Page, requestData.PageSize)
	} else {
		claims, total, err = s.st.GetClaims(requestData.Page, requestData.PageSize)
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	response.Total = total
	for i := range claims {
		info, err := s.claimInfo(&claims[i])
		if err != nil {
			s.fail(c, err)
			return
		}
		response.Claims = append(response.Claims, info)
	}
	c.JSON(http.StatusOK, response)
}

type GetClaimReq struct {
	ClaimId string `json:"claimId"`
}

type StakeInfo struct {
	Staker         string  `json:"staker"`
	Side           string  `json:"side"`
	Stake          float64 `json:"stake"`
	TxId           string  `json:"txId"`
	PlaceTimestamp int64   `json:"placeTimestamp"`
}

type GetClaimResponse struct {
	Claim  ClaimInfo   `json:"claim"`
	Stakes []StakeInfo `json:"stakes"`
}

func (s *Service) handleGetClaim(c *gin.Context) {
	var requestData GetClaimReq
	if err := c.ShouldBindJSON(&requestData); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if requestData.ClaimId == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "claimId is required"})
		return
	}
	cl, err := s.lc.Get(requestData.ClaimId)
	if err != nil {
		s.fail(c, err)
		return
	}
	info, err := s.claimInfo(cl)
	if err != nil {
		s.fail(c, err)
		return
	}
	stakes, err := s.st.StakesByClaim(cl.Id)
	if err != nil {
		s.fail(c, err)
		return
	}
	response := GetClaimResponse{Claim: info, Stakes: make([]StakeInfo, 0, len(stakes))}
	for i := range stakes {
		response.Stakes = append(response.Stakes, StakeInfo{
			Staker:         stakes[i].Staker,
			Side:           sideName(stakes[i].Side),
			Stake:          ledger.Amount(stakes[i].Amount).Units(),
			TxId:           stakes[i].TxId,
			PlaceTimestamp: stakes[i].PlaceTimestamp,
		})
	}
	c.JSON(http.StatusOK, response)
}

type GetProfileReq struct {
	Address string `json:"address"`
}

type GetProfileResponse struct {
	Address         string  `json:"address"`
	ReputationScore int64   `json:"reputationScore"`
	AccuracyRate    float64 `json:"accuracyRate"`
	StakeCount      uint64  `json:"stakeCount"`
	TotalStaked     float64 `json:"totalStaked"`
	TotalRewarded   float64 `json:"totalRewarded"`
	AccurateCount   uint64  `json:"accurateCount"`
	ResolvedCount   uint64  `json:"resolvedCount"`
	ClaimCount      uint64  `json:"claimCount"`
	ChallengeCount  uint64  `json:"challengeCount"`
	CreateTimestamp int64   `json:"createTimestamp"`
}

func (s *Service) handleGetProfile(c *gin.Context) {
	var requestData GetProfileReq
	if err := c.ShouldBindJSON(&requestData); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !ledger.IsValidAddress(requestData.Address) {
		c.JSON(http.StatusBadRequest, gin.H{"error": ledger.ErrInvalidAddress.Error()})
		return
	}
	p, err := s.st.GetProfile(requestData.Address)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, GetProfileResponse{
		Address:         p.UserId,
		ReputationScore: p.ReputationScore,
		AccuracyRate:    p.AccuracyRate(),
		StakeCount:      p.StakeCount,
		TotalStaked:     ledger.Amount(p.TotalStaked).Units(),
		TotalRewarded:   ledger.Amount(p.TotalRewarded).Units(),
		AccurateCount:   p.AccurateCount,
		ResolvedCount:   p.ResolvedCount,
		ClaimCount:      p.ClaimCount,
		ChallengeCount:  p.ChallengeCount,
		CreateTimestamp: p.CreateTimestamp,
	})
}

type GetLeaderboardReq struct {
	Category string `json:"category"`
	Period   string `json:"period"`
}

type LeaderboardEntryInfo struct {
	Rank    int    `json:"rank"`
	Address string `json:"address"`
	Score   int64  `json:"score"`
}

type GetLeaderboardResponse struct {
	Category string                 `json:"category"`
	Period   string                 `json:"period"`
	Entries  []LeaderboardEntryInfo `json:"entries"`
}

func (s *Service) handleGetLeaderboard(c *gin.Context) {
	var requestData GetLeaderboardReq
	if err := c.ShouldBindJSON(&requestData); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	category, err := reputation.ParseCategory(requestData.Category)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	period := reputation.PeriodAllTime
	if requestData.Period != "" {
		period, err = reputation.ParsePeriod(requestData.Period)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	entries, err := s.rep.Entries(category, period)
	if err != nil {
		s.fail(c, err)
		return
	}
	response := GetLeaderboardResponse{
		Category: category.String(),
		Period:   period.String(),
		Entries:  make([]LeaderboardEntryInfo, 0, len(entries)),
	}
	for i := range entries {
		response.Entries = append(response.Entries, LeaderboardEntryInfo{
			Rank:    entries[i].Rank,
			Address: entries[i].UserId,
			Score:   entries[i].Score,
		})
	}
	c.JSON(http.StatusOK, response)
}

type GetTransactionReq struct {
	TxId string `json:"txId"`
}

func (s *Service) handleGetTransaction(c *gin.Context) {
	var requestData GetTransactionReq
	if err := c.ShouldBindJSON(&requestData); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if requestData.TxId == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "txId is required"})
		return
	}
	rec, err := s.index.Lookup(c.Request.Context(), requestData.TxId)
	if err != nil && rec == nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"txId":     rec.TxId,
		"claimId":  rec.ClaimId,
		"kind":     rec.Kind,
		"sender":   rec.Sender,
		"receiver": rec.Receiver,
		"amount":   rec.Amount.Units(),
		"status":   rec.Status,
		"blockRef": rec.BlockRef,
	})
}
