package config

import (
	"strings"
	"testing"
)

func TestParseSizeBinarySuffixes(t *testing.T) {
	cases := map[string]uint64{
		"4GiB":  4 * (1 << 30),
		"1Ki":   1 << 10,
		"2ti":   2 * (1 << 40),
		"1.5Gi": uint64(1.5 * (1 << 30)),
	}
	for in, want := range cases {
		got, err := ParseSize(in)
		if err != nil {
			t.Fatalf("ParseSize(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("ParseSize(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestParseSizeDecimalSuffixes(t *testing.T) {
	got, err := ParseSize("4g")
	if err != nil {
		t.Fatal(err)
	}
	if want := uint64(4e9); got != want {
		t.Errorf("ParseSize(4g) = %d, want %d", got, want)
	}
}

func TestParseSizeNoSuffix(t *testing.T) {
	got, err := ParseSize("1024")
	if err != nil {
		t.Fatal(err)
	}
	if got != 1024 {
		t.Errorf("ParseSize(1024) = %d, want 1024", got)
	}
}

func TestLoadTunablesDefaultsAndOverrides(t *testing.T) {
	input := `
# comment
NETWORK_WORKERS = 8
MASTER_HOST = master.example.com
MASTER_PORT = 9422
MASTER_TIMEOUT = 30
`
	tun, err := LoadTunables(strings.NewReader(input))
	if err != nil {
		t.Fatal(err)
	}
	if tun.NetworkWorkers != 8 {
		t.Errorf("NetworkWorkers = %d, want 8", tun.NetworkWorkers)
	}
	if tun.MasterHost != "master.example.com" {
		t.Errorf("MasterHost = %q", tun.MasterHost)
	}
	if tun.HDDWorkersPerNetworkWorker != DefaultHDDWorkersPerNetworkWorker {
		t.Errorf("expected default HDDWorkersPerNetworkWorker, got %d", tun.HDDWorkersPerNetworkWorker)
	}
	if tun.HDDLeaveSpace == 0 {
		t.Error("expected default HDDLeaveSpace to be applied")
	}
}

func TestLoadTunablesRejectsMasterTimeoutOutOfRange(t *testing.T) {
	_, err := LoadTunables(strings.NewReader("MASTER_TIMEOUT = 5\n"))
	if err == nil {
		t.Fatal("expected error for out-of-range MASTER_TIMEOUT")
	}
}

func TestParseHDDLinePlain(t *testing.T) {
	entry, ok, err := ParseHDDLine("/mnt/disk1")
	if err != nil || !ok {
		t.Fatalf("ParseHDDLine: ok=%v err=%v", ok, err)
	}
	if entry.MetaPath != "/mnt/disk1/" {
		t.Errorf("MetaPath = %q, want trailing slash", entry.MetaPath)
	}
	if entry.MarkedForRemoval || entry.Kind != HDDDiskPlain {
		t.Errorf("unexpected entry: %+v", entry)
	}
}

func TestParseHDDLineMarkedForRemoval(t *testing.T) {
	entry, ok, err := ParseHDDLine("*/mnt/disk1")
	if err != nil || !ok {
		t.Fatalf("ParseHDDLine: ok=%v err=%v", ok, err)
	}
	if !entry.MarkedForRemoval {
		t.Error("expected MarkedForRemoval")
	}
}

func TestParseHDDLineZonefsRequiresDataPath(t *testing.T) {
	_, _, err := ParseHDDLine("zonefs:/mnt/meta")
	if err == nil {
		t.Fatal("expected error when zonefs entry lacks a data path")
	}

	entry, ok, err := ParseHDDLine("zonefs:/mnt/meta | /mnt/data")
	if err != nil || !ok {
		t.Fatalf("ParseHDDLine: ok=%v err=%v", ok, err)
	}
	if entry.Kind != HDDDiskZonefs || entry.MetaPath != "/mnt/meta/" || entry.DataPath != "/mnt/data/" {
		t.Errorf("unexpected entry: %+v", entry)
	}
}

func TestParseHDDLineCommentAndBlankSkipped(t *testing.T) {
	if _, ok, err := ParseHDDLine("# a comment"); ok || err != nil {
		t.Errorf("expected comment to be skipped, got ok=%v err=%v", ok, err)
	}
	if _, ok, err := ParseHDDLine("   "); ok || err != nil {
		t.Errorf("expected blank line to be skipped, got ok=%v err=%v", ok, err)
	}
}

func TestParseHDDConfigMultipleLines(t *testing.T) {
	input := "# header\n/mnt/a\n*/mnt/b\nzonefs:/mnt/c | /mnt/c-data\n\n"
	entries, err := ParseHDDConfig(strings.NewReader(input))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
}
