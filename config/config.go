// Package config parses the chunkserver's two configuration surfaces: the
// main tunables file and the per-disk HDD configuration lines (§6). It
// deliberately mirrors the original cfg.cc grammar rather than adopting a
// structured format (YAML/TOML/INI), since the on-disk format is a fixed
// external contract this core must keep reading.
package config

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/NebulousLabs/errors"
)

// Defaults for the tunables named in §6.
const (
	DefaultHDDLeaveSpace             = "4GiB"
	DefaultNetworkWorkers             = 4
	DefaultHDDWorkersPerNetworkWorker = 16
	DefaultMaxBGJobsPerNetworkWorker  = 1000
	DefaultMasterReconnectionDelay    = 5 * time.Second
	CSServTimeout                     = 10 * time.Second
)

var (
	errEmptyHDDLine      = errors.New("empty HDD configuration line")
	errMissingDataPath    = errors.New("zonefs entry requires a data path after ' | '")
	errMasterTimeoutRange = errors.New("MASTER_TIMEOUT must be between 10 and 65535 seconds")
)

// Tunables holds the main configuration file's settings (§6).
// LoadTunables starts from DefaultTunables and overrides only the keys the
// file sets.
type Tunables struct {
	HDDLeaveSpace             uint64
	NetworkWorkers             int
	HDDWorkersPerNetworkWorker int
	MaxBGJobsPerNetworkWorker  int
	MasterHost                string
	MasterPort                 string
	BindHost                   string
	MasterTimeout              time.Duration
	MasterReconnectionDelay    time.Duration
}

// DefaultTunables returns the tunables with every §6 default applied.
func DefaultTunables() Tunables {
	leaveSpace, _ := ParseSize(DefaultHDDLeaveSpace)
	return Tunables{
		HDDLeaveSpace:             leaveSpace,
		NetworkWorkers:             DefaultNetworkWorkers,
		HDDWorkersPerNetworkWorker: DefaultHDDWorkersPerNetworkWorker,
		MaxBGJobsPerNetworkWorker:  DefaultMaxBGJobsPerNetworkWorker,
		MasterReconnectionDelay:    DefaultMasterReconnectionDelay,
	}
}

// LoadTunables parses key = value lines (# comments, blank lines ignored)
// from r, starting from DefaultTunables.
func LoadTunables(r io.Reader) (Tunables, error) {
	t := DefaultTunables()
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if err := t.apply(key, value); err != nil {
			return Tunables{}, errors.AddContext(err, "key "+key)
		}
	}
	if err := scanner.Err(); err != nil {
		return Tunables{}, err
	}
	if t.MasterTimeout != 0 && (t.MasterTimeout < 10*time.Second || t.MasterTimeout > 65535*time.Second) {
		return Tunables{}, errMasterTimeoutRange
	}
	return t, nil
}

func (t *Tunables) apply(key, value string) error {
	switch key {
	case "HDD_LEAVE_SPACE_DEFAULT":
		size, err := ParseSize(value)
		if err != nil {
			return err
		}
		t.HDDLeaveSpace = size
	case "NETWORK_WORKERS":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		t.NetworkWorkers = n
	case "HDD_WORKERS_PER_NETWORK_WORKER":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		t.HDDWorkersPerNetworkWorker = n
	case "MAX_BG_JOBS_PER_NETWORK_WORKER":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		t.MaxBGJobsPerNetworkWorker = n
	case "MASTER_HOST":
		t.MasterHost = value
	case "MASTER_PORT":
		t.MasterPort = value
	case "BIND_HOST":
		t.BindHost = value
	case "MASTER_TIMEOUT":
		secs, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		t.MasterTimeout = time.Duration(secs) * time.Second
	case "MASTER_RECONNECTION_DELAY":
		secs, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		t.MasterReconnectionDelay = time.Duration(secs) * time.Second
	}
	return nil
}

var sizeSuffixes = map[string]uint64{
	"ki": 1 << 10, "mi": 1 << 20, "gi": 1 << 30, "ti": 1 << 40, "pi": 1 << 50, "ei": 1 << 60,
	"k": 1e3, "m": 1e6, "g": 1e9, "t": 1e12, "p": 1e15, "e": 1e18,
}

// ParseSize parses a size string with an optional binary (Ki/Mi/Gi/Ti/Pi/Ei)
// or decimal (k/m/g/t/p/e) suffix, case-insensitive, with optional
// whitespace and a decimal point in the numeric part (§6).
func ParseSize(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty size value")
	}
	lower := strings.ToLower(s)
	// "4GiB"-style values carry a trailing byte-unit letter that is not
	// part of the multiplier itself; drop it before detecting the suffix.
	trimmedLower := strings.TrimSuffix(lower, "b")
	trailingLen := len(lower) - len(trimmedLower)

	var suffix string
	for _, candidate := range []string{"ki", "mi", "gi", "ti", "pi", "ei", "k", "m", "g", "t", "p", "e"} {
		if strings.HasSuffix(trimmedLower, candidate) {
			suffix = candidate
			break
		}
	}

	numPart := strings.TrimSpace(s[:len(s)-len(suffix)-trailingLen])
	value, err := strconv.ParseFloat(numPart, 64)
	if err != nil {
		return 0, errors.AddContext(err, "invalid numeric size")
	}

	mult := uint64(1)
	if suffix != "" {
		mult = sizeSuffixes[suffix]
	}
	return uint64(value * float64(mult)), nil
}

// HDDDiskKind distinguishes an ordinary directory from a zoned (zonefs)
// device, per the HDD configuration line grammar in §6.
type HDDDiskKind uint8

const (
	HDDDiskPlain HDDDiskKind = iota
	HDDDiskZonefs
)

// HDDEntry is one parsed, non-comment HDD configuration line.
type HDDEntry struct {
	MarkedForRemoval bool
	Kind             HDDDiskKind
	MetaPath         string
	DataPath         string
}

// ParseHDDLine parses one line of the per-disk HDD configuration file:
// `[*][zonefs:]<metaPath>[ | <dataPath>]`. A leading '#' or an empty line
// is reported via ok=false, err=nil (caller should skip it, not fail).
func ParseHDDLine(line string) (entry HDDEntry, ok bool, err error) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return HDDEntry{}, false, nil
	}

	rest := trimmed
	if strings.HasPrefix(rest, "*") {
		entry.MarkedForRemoval = true
		rest = rest[1:]
	}
	if strings.HasPrefix(rest, "zonefs:") {
		entry.Kind = HDDDiskZonefs
		rest = strings.TrimPrefix(rest, "zonefs:")
	}

	if entry.Kind == HDDDiskZonefs {
		metaPath, dataPath, found := strings.Cut(rest, " | ")
		if !found {
			return HDDEntry{}, false, errMissingDataPath
		}
		entry.MetaPath = normalizePath(metaPath)
		entry.DataPath = normalizePath(dataPath)
		return entry, true, nil
	}

	metaPath, dataPath, found := strings.Cut(rest, " | ")
	entry.MetaPath = normalizePath(metaPath)
	if found {
		entry.DataPath = normalizePath(dataPath)
	}
	if entry.MetaPath == "" {
		return HDDEntry{}, false, errEmptyHDDLine
	}
	return entry, true, nil
}

func normalizePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return p
	}
	if !strings.HasSuffix(p, "/") {
		p += "/"
	}
	return p
}

// ParseHDDConfig parses every line of a full HDD configuration file,
// skipping comments and blank lines.
func ParseHDDConfig(r io.Reader) ([]HDDEntry, error) {
	var entries []HDDEntry
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		entry, ok, err := ParseHDDLine(scanner.Text())
		if err != nil {
			return nil, err
		}
		if ok {
			entries = append(entries, entry)
		}
	}
	return entries, scanner.Err()
}
