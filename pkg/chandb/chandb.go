// Package chandb stores tuned channels in a bbolt database so they can be
// tuned again by name.
package chandb

import (
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
	"gopkg.in/yaml.v3"

	"github.com/herlein/godvb/pkg/frontend"
)

var channelsBucket = []byte("channels")

// OpenTimeout bounds the wait for the file lock held by another process
const OpenTimeout = time.Second

// Channel is one stored transponder
type Channel struct {
	Name       string              `yaml:"name"`
	Properties frontend.Properties `yaml:"properties"`
	SNR        int32               `yaml:"snr"` // 0.1 dB
	Strength   uint16              `yaml:"strength"`
	LastLocked time.Time           `yaml:"last_locked"`
}

// Validate checks that the channel can be stored and tuned
func (c *Channel) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidChannel)
	}
	if err := c.Properties.Validate(); err != nil {
		return fmt.Errorf("%w %q: %w", ErrInvalidChannel, c.Name, err)
	}
	return nil
}

// DefaultName names a channel after its delivery system and frequency
func DefaultName(p frontend.Properties) string {
	name := fmt.Sprintf("%s-%d", p.DeliverySystem, (p.FrequencyHz+500_000)/1_000_000)
	if p.StreamID > 0 {
		name += fmt.Sprintf("-%d", p.StreamID)
	}
	return name
}

// DB is a channel database
type DB struct {
	db *bolt.DB
}

// Open opens or creates the database at path
func Open(path string) (*DB, error) {
	db, err := bolt.Open(path, 0o644, &bolt.Options{Timeout: OpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open channel database %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(channelsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create channel bucket: %w", err)
	}
	return &DB{db: db}, nil
}

// Close closes the database
func (d *DB) Close() error {
	return d.db.Close()
}

// Path returns the database file path
func (d *DB) Path() string {
	return d.db.Path()
}

// Put stores ch, replacing any channel with the same name
func (d *DB) Put(ch Channel) error {
	if err := ch.Validate(); err != nil {
		return err
	}
	data, err := yaml.Marshal(&ch)
	if err != nil {
		return fmt.Errorf("failed to encode channel %q: %w", ch.Name, err)
	}
	return d.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(channelsBucket).Put([]byte(ch.Name), data)
	})
}

// Get returns the channel called name
func (d *DB) Get(name string) (Channel, error) {
	var ch Channel
	err := d.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(channelsBucket).Get([]byte(name))
		if data == nil {
			return fmt.Errorf("%w: %q", ErrNotFound, name)
		}
		return decode(data, &ch)
	})
	return ch, err
}

// List returns every channel ordered by name
func (d *DB) List() ([]Channel, error) {
	var out []Channel
	err := d.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(channelsBucket).ForEach(func(k, v []byte) error {
			var ch Channel
			if err := decode(v, &ch); err != nil {
				return err
			}
			out = append(out, ch)
			return nil
		})
	})
	return out, err
}

// Delete removes the channel called name
func (d *DB) Delete(name string) error {
	return d.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(channelsBucket)
		if b.Get([]byte(name)) == nil {
			return fmt.Errorf("%w: %q", ErrNotFound, name)
		}
		return b.Delete([]byte(name))
	})
}

func decode(data []byte, ch *Channel) error {
	if err := yaml.Unmarshal(data, ch); err != nil {
		return fmt.Errorf("failed to decode channel: %w", err)
	}
	return nil
}
