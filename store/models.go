package store

// sqlite models

const (
	ClaimStatusDraft    uint64 = 0 // transient, exists only during create
	ClaimStatusPending  uint64 = 1
	ClaimStatusResolved uint64 = 2
)

const (
	SideSupport uint64 = 1
	SideOppose  uint64 = 2
)

const (
	OutcomeNone    uint64 = 0
	OutcomeSupport uint64 = 1
	OutcomeOppose  uint64 = 2
	OutcomeTie     uint64 = 3
)

type Claim struct {
	Id                string `gorm:"primaryKey" json:"id"`
	Author            string `json:"author"`
	Content           string `json:"content"`
	OriginalStake     int64  `json:"original_stake"`
	TotalStaked       int64  `json:"total_staked"`
	VerificationCount uint64 `json:"verification_count"`
	Status            uint64 `json:"status"`
	Outcome           uint64 `json:"outcome"`
	Degraded          bool   `json:"degraded"`
	LedgerTxId        string `json:"ledger_tx_id"`
	CreateTimestamp   int64  `json:"create_timestamp"`
	ExpireTimestamp   int64  `json:"expire_timestamp"`
	SettleTimestamp   int64  `json:"settle_timestamp"`
}

type Stake struct {
	Id             uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	ClaimId        string `json:"claim_id"`
	Staker         string `json:"staker"`
	Side           uint64 `json:"side"`
	Amount         int64  `json:"amount"`
	TxId           string `json:"tx_id"`
	PlaceTimestamp int64  `json:"place_timestamp"`
}

type Profile struct {
	UserId          string `gorm:"primaryKey" json:"user_id"`
	ReputationScore int64  `json:"reputation_score"`
	StakeCount      uint64 `json:"stake_count"`
	TotalStaked     int64  `json:"total_staked"`
	TotalRewarded   int64  `json:"total_rewarded"`
	AccurateCount   uint64 `json:"accurate_count"`
	ResolvedCount   uint64 `json:"resolved_count"`
	ClaimCount      uint64 `json:"claim_count"`
	ChallengeCount  uint64 `json:"challenge_count"`
	CreateTimestamp int64  `json:"create_timestamp"`
}

// AccuracyRate is the share of resolved claims this user staked on the
// winning side of. Zero before any resolution involves the user.
func (p *Profile) AccuracyRate() float64 {
	if p.ResolvedCount == 0 {
		return 0
	}
	return float64(p.AccurateCount) / float64(p.ResolvedCount)
}

type LeaderboardEntry struct {
	Id       uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	Category string `json:"category"`
	Period   string `json:"period"`
	UserId   string `json:"user_id"`
	Score    int64  `json:"score"`
	Rank     int    `json:"rank"`
}

// TxRecord links a platform entity to a ledger transaction for auditing.
type TxRecord struct {
	TxId            string `gorm:"primaryKey" json:"tx_id"`
	ClaimId         string `json:"claim_id"`
	Sender          string `json:"sender"`
	Receiver        string `json:"receiver"`
	Amount          int64  `json:"amount"`
	Kind            string `json:"kind"` // "claim" or "verification"
	BlockRef        string `json:"block_ref"`
	CreateTimestamp int64  `json:"create_timestamp"`
}
