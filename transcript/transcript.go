package transcript

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	. "github.com/stevegt/goadapt"
	"github.com/stevegt/grokchat/client"
	"github.com/stevegt/semver"
	bolt "go.etcd.io/bbolt"
)

// FormatVersion is the version of the on-disk layout written by this
// code.
const FormatVersion = "1.0.0"

var (
	metaBucket  = []byte("meta")
	convsBucket = []byte("conversations")
	// orderBucket lives in meta and maps a creation sequence number
	// to a conversation id.
	orderBucket = []byte("order")
	versionKey  = []byte("version")
)

// ErrNewerFormat is returned by Open when the file was written by a
// newer version of grokchat.
var ErrNewerFormat = errors.New("transcript was written by a newer version")

// Transcript is an append-only record of chat messages, grouped by
// conversation id.  This struct is an adapter for bolt.
type Transcript struct {
	bdb *bolt.DB
}

// Entry is a single recorded message.
type Entry struct {
	Role    string
	Content string
	Time    time.Time
}

// Open opens a transcript, creating it if it doesn't exist.
func Open(path string) (t *Transcript, err error) {
	defer Return(&err)
	t = &Transcript{}
	opts := &bolt.Options{Timeout: 10 * time.Second}
	t.bdb, err = bolt.Open(path, 0600, opts)
	Ck(err)
	err = t.bdb.Update(func(tx *bolt.Tx) error {
		meta, err := tx.CreateBucketIfNotExists(metaBucket)
		if err != nil {
			return err
		}
		_, err = tx.CreateBucketIfNotExists(convsBucket)
		if err != nil {
			return err
		}
		_, err = meta.CreateBucketIfNotExists(orderBucket)
		if err != nil {
			return err
		}
		stored := meta.Get(versionKey)
		if stored == nil {
			return meta.Put(versionKey, []byte(FormatVersion))
		}
		return checkVersion(string(stored))
	})
	if err != nil {
		// keep err unwrapped so callers can match ErrNewerFormat
		t.bdb.Close()
		t = nil
	}
	return
}

// checkVersion refuses formats newer than FormatVersion.
func checkVersion(stored string) (err error) {
	defer Return(&err)
	ours, err := semver.Parse([]byte(FormatVersion))
	Ck(err)
	theirs, err := semver.Parse([]byte(stored))
	Ck(err, "bad transcript version %q", stored)
	cmp, err := semver.Cmp(theirs, ours)
	Ck(err)
	if cmp > 0 {
		err = fmt.Errorf("%w: %s > %s", ErrNewerFormat, stored, FormatVersion)
	}
	return
}

// Close closes the transcript.
func (t *Transcript) Close() (err error) {
	defer Return(&err)
	err = t.bdb.Close()
	Ck(err)
	return
}

// Version returns the format version stored in the file.
func (t *Transcript) Version() (version string, err error) {
	err = t.bdb.View(func(tx *bolt.Tx) error {
		version = string(tx.Bucket(metaBucket).Get(versionKey))
		return nil
	})
	return
}

// Record appends msg to the conversation convID.
func (t *Transcript) Record(convID string, msg client.ChatMsg) (err error) {
	defer Return(&err)
	Assert(convID != "", "conversation id is required")
	entry := Entry{Role: msg.Role, Content: msg.Content, Time: time.Now()}
	buf, err := json.Marshal(entry)
	Ck(err)
	err = t.bdb.Update(func(tx *bolt.Tx) error {
		convs := tx.Bucket(convsBucket)
		b := convs.Bucket([]byte(convID))
		if b == nil {
			var err error
			b, err = convs.CreateBucket([]byte(convID))
			if err != nil {
				return err
			}
			order := tx.Bucket(metaBucket).Bucket(orderBucket)
			n, err := order.NextSequence()
			if err != nil {
				return err
			}
			err = order.Put(seqKey(n), []byte(convID))
			if err != nil {
				return err
			}
		}
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		return b.Put(seqKey(seq), buf)
	})
	Ck(err)
	return
}

// Conversations returns the ids of all recorded conversations, oldest
// first.
func (t *Transcript) Conversations() (ids []string, err error) {
	defer Return(&err)
	err = t.bdb.View(func(tx *bolt.Tx) error {
		order := tx.Bucket(metaBucket).Bucket(orderBucket)
		return order.ForEach(func(k, v []byte) error {
			ids = append(ids, string(v))
			return nil
		})
	})
	Ck(err)
	return
}

// Messages returns the entries of conversation convID in the order
// they were recorded.  It returns no entries for an unknown id.
func (t *Transcript) Messages(convID string) (entries []Entry, err error) {
	defer Return(&err)
	err = t.bdb.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(convsBucket).Bucket([]byte(convID))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			entries = append(entries, e)
			return nil
		})
	})
	Ck(err)
	return
}

// seqKey encodes seq so that byte order matches numeric order.
func seqKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}
