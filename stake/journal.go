package stake

import (
	"encoding/json"
	"fmt"
	"sync"

	"cosmossdk.io/log"
	"github.com/syndtr/goleveldb/leveldb"
)

// Journal durably records in-flight escrow submissions keyed by
// (claimID, staker). An entry written before confirmation and cleared after
// lets a retry re-query the transaction instead of submitting it twice.
type Journal struct {
	mtx    sync.Mutex
	logger log.Logger
	db     *leveldb.DB
}

// JournalEntry captures everything needed to finish an escrow from the
// original submission. Side and Amount are recorded so a recovery always
// finalizes what was actually submitted, never what a retry asks for.
type JournalEntry struct {
	TxId        string `json:"tx_id"`
	Side        uint64 `json:"side"`
	Amount      int64  `json:"amount"`
	SubmittedAt int64  `json:"submitted_at"`
}

func OpenJournal(dir string, logger log.Logger) (*Journal, error) {
	db, err := leveldb.OpenFile(dir, nil)
	if err != nil {
		return nil, err
	}
	return &Journal{
		logger: logger.With("module", "journal"),
		db:     db,
	}, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

func journalKey(claimID, staker string) []byte {
	return []byte(fmt.Sprintf("escrow/%s/%s", claimID, staker))
}

// Get returns the in-flight entry for (claimID, staker), or nil.
func (j *Journal) Get(claimID, staker string) (*JournalEntry, error) {
	j.mtx.Lock()
	defer j.mtx.Unlock()
	dat, err := j.db.Get(journalKey(claimID, staker), nil)
	if err == leveldb.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var e JournalEntry
	if err := json.Unmarshal(dat, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func (j *Journal) Put(claimID, staker string, e *JournalEntry) error {
	j.mtx.Lock()
	defer j.mtx.Unlock()
	dat, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return j.db.Put(journalKey(claimID, staker), dat, nil)
}

func (j *Journal) Delete(claimID, staker string) error {
	j.mtx.Lock()
	defer j.mtx.Unlock()
	return j.db.Delete(journalKey(claimID, staker), nil)
}
