package store

import (
	"errors"

	"cosmossdk.io/log"
	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/sqlite"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrAlreadyResolved = errors.New("claim already resolved")
)

type Store struct {
	logger log.Logger
	db     *gorm.DB
}

func Open(dbPath string, logger log.Logger) (*Store, error) {
	db, err := gorm.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	// sqlite: one writer at a time
	db.DB().SetMaxOpenConns(1)
	if err := db.AutoMigrate(&Claim{}, &Stake{}, &Profile{}, &LeaderboardEntry{}, &TxRecord{}).Error; err != nil {
		return nil, err
	}
	return &Store{
		logger: logger.With("module", "store"),
		db:     db,
	}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func notFound(err error) error {
	if gorm.IsRecordNotFoundError(err) {
		return ErrNotFound
	}
	return err
}

// --- claims ---

func (s *Store) CreateClaim(c *Claim) error {
	return s.db.Create(c).Error
}

func (s *Store) SaveClaim(c *Claim) error {
	return s.db.Save(c).Error
}

// DeleteDraft removes a claim that never left draft. Pending and resolved
// claims are archived, never deleted.
func (s *Store) DeleteDraft(claimID string) error {
	return s.db.Where("id = ? AND status = ?", claimID, ClaimStatusDraft).Delete(&Claim{}).Error
}

func (s *Store) GetClaim(claimID string) (*Claim, error) {
	var c Claim
	if err := s.db.Where("id = ?", claimID).First(&c).Error; err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (s *Store) GetClaims(page, pageSize int) ([]Claim, uint64, error) {
	var claims []Claim
	err := s.db.Where("status <> ?", ClaimStatusDraft).
		Order("create_timestamp desc").Offset(page * pageSize).Limit(pageSize).Find(&claims).Error
	if err != nil {
		return nil, 0, err
	}
	var total uint64
	if err := s.db.Model(&Claim{}).Where("status <> ?", ClaimStatusDraft).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	return claims, total, nil
}

func (s *Store) GetClaimsByAuthor(author string, page, pageSize int) ([]Claim, uint64, error) {
	var claims []Claim
	err := s.db.Where("author = ? AND status <> ?", author, ClaimStatusDraft).
		Order("create_timestamp desc").Offset(page * pageSize).Limit(pageSize).Find(&claims).Error
	if err != nil {
		return nil, 0, err
	}
	var total uint64
	if err := s.db.Model(&Claim{}).Where("author = ? AND status <> ?", author, ClaimStatusDraft).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	return claims, total, nil
}

// DueClaims returns pending claims whose resolution window has expired.
func (s *Store) DueClaims(now int64) ([]Claim, error) {
	var claims []Claim
	err := s.db.Where("status = ? AND expire_timestamp <= ?", ClaimStatusPending, now).
		Order("expire_timestamp asc").Find(&claims).Error
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// MarkResolved flips a pending claim to resolved. The status check inside the
// update is the idempotency fence: a claim resolved by a concurrent pass
// reports ErrAlreadyResolved here.
func (s *Store) MarkResolved(claimID string, outcome uint64, degraded bool, settledAt int64) error {
	res := s.db.Model(&Claim{}).
		Where("id = ? AND status = ?", claimID, ClaimStatusPending).
		UpdateColumns(map[string]interface{}{
			"status":           ClaimStatusResolved,
			"outcome":          outcome,
			"degraded":         degraded,
			"settle_timestamp": settledAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAlreadyResolved
	}
	return nil
}

// --- stakes ---

func (s *Store) StakeExists(claimID, staker string) (bool, error) {
	var st Stake
	err := s.db.Where("claim_id = ? AND staker = ?", claimID, staker).First(&st).Error
	if err != nil {
		if gorm.IsRecordNotFoundError(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *Store) GetStake(claimID, staker string) (*Stake, error) {
	var st Stake
	if err := s.db.Where("claim_id = ? AND staker = ?", claimID, staker).First(&st).Error; err != nil {
		return nil, notFound(err)
	}
	return &st, nil
}

func (s *Store) StakesByClaim(claimID string) ([]Stake, error) {
	var stakes []Stake
	if err := s.db.Where("claim_id = ?", claimID).Order("id asc").Find(&stakes).Error; err != nil {
		return nil, err
	}
	return stakes, nil
}

func (s *Store) StakesByStaker(staker string, page, pageSize int) ([]Stake, uint64, error) {
	var stakes []Stake
	err := s.db.Where("staker = ?", staker).Order("id desc").
		Offset(page * pageSize).Limit(pageSize).Find(&stakes).Error
	if err != nil {
		return nil, 0, err
	}
	var total uint64
	if err := s.db.Model(&Stake{}).Where("staker = ?", staker).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	return stakes, total, nil
}

// AppendStake records a confirmed escrow in one transaction: the Stake row,
// the claim counter increments, the audit record, and the staker's profile
// counters. The counter moves are atomic adds, not read-modify-write, so
// concurrent stakes from different users on the same claim both land.
func (s *Store) AppendStake(st *Stake, rec *TxRecord, isVerification bool) error {
	tx := s.db.Begin()
	if tx.Error != nil {
		return tx.Error
	}
	if err := tx.Create(st).Error; err != nil {
		tx.Rollback()
		return err
	}

	claimCols := map[string]interface{}{
		"total_staked": gorm.Expr("total_staked + ?", st.Amount),
	}
	if isVerification {
		claimCols["verification_count"] = gorm.Expr("verification_count + 1")
	}
	if err := tx.Model(&Claim{}).Where("id = ?", st.ClaimId).UpdateColumns(claimCols).Error; err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Create(rec).Error; err != nil {
		tx.Rollback()
		return err
	}

	if err := ensureProfileTx(tx, st.Staker, st.PlaceTimestamp); err != nil {
		tx.Rollback()
		return err
	}
	profCols := map[string]interface{}{
		"stake_count":  gorm.Expr("stake_count + 1"),
		"total_staked": gorm.Expr("total_staked + ?", st.Amount),
	}
	if st.Side == SideOppose {
		profCols["challenge_count"] = gorm.Expr("challenge_count + 1")
	}
	if err := tx.Model(&Profile{}).Where("user_id = ?", st.Staker).UpdateColumns(profCols).Error; err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}

// --- profiles ---

func ensureProfileTx(tx *gorm.DB, userID string, now int64) error {
	var p Profile
	err := tx.Where("user_id = ?", userID).First(&p).Error
	if err == nil {
		return nil
	}
	if !gorm.IsRecordNotFoundError(err) {
		return err
	}
	return tx.Create(&Profile{UserId: userID, CreateTimestamp: now}).Error
}

func (s *Store) EnsureProfile(userID string, now int64) (*Profile, error) {
	if err := ensureProfileTx(s.db, userID, now); err != nil {
		return nil, err
	}
	return s.GetProfile(userID)
}

func (s *Store) GetProfile(userID string) (*Profile, error) {
	var p Profile
	if err := s.db.Where("user_id = ?", userID).First(&p).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (s *Store) Profiles() ([]Profile, error) {
	var profiles []Profile
	if err := s.db.Order("create_timestamp asc").Find(&profiles).Error; err != nil {
		return nil, err
	}
	return profiles, nil
}

func (s *Store) BumpClaimCount(userID string) error {
	return s.db.Model(&Profile{}).Where("user_id = ?", userID).
		UpdateColumn("claim_count", gorm.Expr("claim_count + 1")).Error
}

// ApplyOutcome moves a profile's resolution bookkeeping: the accuracy
// denominator always advances, the numerator and reputation only on a win.
func (s *Store) ApplyOutcome(userID string, accurate bool, scoreDelta int64, rewarded int64) error {
	cols := map[string]interface{}{
		"resolved_count": gorm.Expr("resolved_count + 1"),
	}
	if accurate {
		cols["accurate_count"] = gorm.Expr("accurate_count + 1")
		cols["reputation_score"] = gorm.Expr("reputation_score + ?", scoreDelta)
		cols["total_rewarded"] = gorm.Expr("total_rewarded + ?", rewarded)
	}
	return s.db.Model(&Profile{}).Where("user_id = ?", userID).UpdateColumns(cols).Error
}

// --- leaderboard ---

func (s *Store) LeaderboardEntries(category, period string) ([]LeaderboardEntry, error) {
	var entries []LeaderboardEntry
	err := s.db.Where("category = ? AND period = ?", category, period).
		Order("rank asc").Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// ReplaceLeaderboard swaps the entry set for one (category, period) key in a
// single transaction. Readers never see a partial overwrite.
func (s *Store) ReplaceLeaderboard(category, period string, entries []LeaderboardEntry) error {
	tx := s.db.Begin()
	if tx.Error != nil {
		return tx.Error
	}
	if err := tx.Where("category = ? AND period = ?", category, period).Delete(&LeaderboardEntry{}).Error; err != nil {
		tx.Rollback()
		return err
	}
	for i := range entries {
		entries[i].Id = 0
		entries[i].Category = category
		entries[i].Period = period
		if err := tx.Create(&entries[i]).Error; err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit().Error
}

// --- period aggregates ---

type StakeAggregate struct {
	Staker      string
	Total       int64
	Count       uint64
	OpposeCount uint64
}

// StakeAggregates sums per-user stake activity placed at or after since.
func (s *Store) StakeAggregates(since int64) (map[string]StakeAggregate, error) {
	var rows []StakeAggregate
	err := s.db.Raw(`SELECT staker,
			SUM(amount) AS total,
			COUNT(*) AS count,
			SUM(CASE WHEN side = ? THEN 1 ELSE 0 END) AS oppose_count
		FROM stakes WHERE place_timestamp >= ? GROUP BY staker`, SideOppose, since).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]StakeAggregate, len(rows))
	for _, r := range rows {
		out[r.Staker] = r
	}
	return out, nil
}

type claimCountRow struct {
	Author string
	Count  uint64
}

// ClaimCounts counts per-author claims created at or after since.
func (s *Store) ClaimCounts(since int64) (map[string]uint64, error) {
	var rows []claimCountRow
	err := s.db.Raw(`SELECT author, COUNT(*) AS count
		FROM claims WHERE create_timestamp >= ? AND status <> ? GROUP BY author`,
		since, ClaimStatusDraft).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]uint64, len(rows))
	for _, r := range rows {
		out[r.Author] = r.Count
	}
	return out, nil
}

// --- audit records ---

func (s *Store) GetTxRecord(txID string) (*TxRecord, error) {
	var rec TxRecord
	if err := s.db.Where("tx_id = ?", txID).First(&rec).Error; err != nil {
		return nil, notFound(err)
	}
	return &rec, nil
}

func (s *Store) TxRecordsByClaim(claimID string) ([]TxRecord, error) {
	var recs []TxRecord
	if err := s.db.Where("claim_id = ?", claimID).Order("create_timestamp asc").Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}
