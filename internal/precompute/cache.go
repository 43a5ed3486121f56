package precompute

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
)

// Durability controls whether cache appends are fsync'd.
type Durability int

const (
	// DurabilityAsync hands each entry to the OS before the next record starts.
	DurabilityAsync Durability = iota
	// DurabilitySync additionally calls fsync after every entry.
	DurabilitySync
)

const (
	cacheEntrySize = 4

	metaMagic   = "DIVCACHE" // 8 bytes
	metaVersion = 1          // 4 bytes
	metaSize    = 20         // magic + version + fingerprint
)

// CacheOptions configures OpenCache.
type CacheOptions struct {
	Durability Durability
	Logger     *slog.Logger
}

// Cache is the append-only log of completed record results. Its length is
// the only resume signal: entry i is the result of record i.
//
// Entries are replayed with Next until it reports a miss, after which every
// freshly computed result is written with Append.
type Cache struct {
	f       *os.File
	path    string
	opts    CacheOptions
	pending int64
	buf     [cacheEntrySize]byte

	replayed int
	appended int
}

// OpenCache opens or creates the cache at path. The fingerprint of the run
// configuration is checked against the <path>.meta sidecar; a mismatch
// returns ErrCacheMismatch rather than replaying stale entries.
func OpenCache(path string, fingerprint uint64, opts CacheOptions) (*Cache, error) {
	if opts.Logger == nil {
		opts.Logger = discardLogger()
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, ioErr(RoleCache, OpOpen, path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, ioErr(RoleCache, OpMeta, path, err)
	}

	size := info.Size()
	if torn := size % cacheEntrySize; torn != 0 {
		opts.Logger.Warn("cache ends with a torn entry, it will be overwritten",
			"path", path,
			"size", size,
			"torn_bytes", torn,
		)
	}

	if err := checkCacheMeta(path+".meta", fingerprint, size, opts.Logger); err != nil {
		f.Close()
		return nil, err
	}

	return &Cache{
		f:       f,
		path:    path,
		opts:    opts,
		pending: size / cacheEntrySize,
	}, nil
}

// Next returns the next replayed entry. ok is false once every stored entry
// has been consumed, meaning the current record must be computed.
func (c *Cache) Next() (value int32, ok bool, err error) {
	if c.pending == 0 {
		return 0, false, nil
	}
	if _, err := io.ReadFull(c.f, c.buf[:]); err != nil {
		return 0, false, ioErr(RoleCache, OpRead, c.path, err)
	}
	c.pending--
	c.replayed++
	return int32(binary.NativeEndian.Uint32(c.buf[:])), true, nil
}

// Append durably records the result of the next record.
func (c *Cache) Append(value int32) error {
	if c.pending != 0 {
		return ioErr(RoleCache, OpWrite, c.path,
			fmt.Errorf("append with %d entries not yet replayed", c.pending))
	}

	binary.NativeEndian.PutUint32(c.buf[:], uint32(value))
	if _, err := c.f.Write(c.buf[:]); err != nil {
		return ioErr(RoleCache, OpWrite, c.path, err)
	}
	if c.opts.Durability == DurabilitySync {
		if err := c.f.Sync(); err != nil {
			return ioErr(RoleCache, OpSync, c.path, err)
		}
	}
	c.appended++
	return nil
}

// Pending returns how many stored entries are still waiting to be replayed.
func (c *Cache) Pending() int64 { return c.pending }

// Replayed returns how many entries Next has served.
func (c *Cache) Replayed() int { return c.replayed }

// Appended returns how many entries Append has written.
func (c *Cache) Appended() int { return c.appended }

// Close releases the cache file.
func (c *Cache) Close() error {
	return c.f.Close()
}

func checkCacheMeta(metaPath string, fingerprint uint64, cacheSize int64, logger *slog.Logger) error {
	data, err := os.ReadFile(metaPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if cacheSize >= cacheEntrySize {
			logger.Warn("cache has no fingerprint, replaying entries unchecked", "meta", metaPath)
			return nil
		}
		return writeCacheMeta(metaPath, fingerprint)
	case err != nil:
		return ioErr(RoleCache, OpRead, metaPath, err)
	}

	if cacheSize < cacheEntrySize {
		// Nothing to misinterpret yet; adopt the current configuration.
		return writeCacheMeta(metaPath, fingerprint)
	}

	if len(data) != metaSize || string(data[0:8]) != metaMagic {
		return fmt.Errorf("%w: invalid header in %s", ErrCacheMismatch, metaPath)
	}
	if ver := binary.LittleEndian.Uint32(data[8:12]); ver != metaVersion {
		return fmt.Errorf("%w: version %d (expected %d)", ErrCacheMismatch, ver, metaVersion)
	}
	if got := binary.LittleEndian.Uint64(data[12:20]); got != fingerprint {
		return fmt.Errorf("%w: fingerprint %016x, current run %016x", ErrCacheMismatch, got, fingerprint)
	}
	return nil
}

func writeCacheMeta(metaPath string, fingerprint uint64) error {
	header := make([]byte, metaSize)
	copy(header[0:8], metaMagic)
	binary.LittleEndian.PutUint32(header[8:12], metaVersion)
	binary.LittleEndian.PutUint64(header[12:20], fingerprint)
	if err := os.WriteFile(metaPath, header, 0644); err != nil {
		return ioErr(RoleCache, OpWrite, metaPath, err)
	}
	return nil
}
