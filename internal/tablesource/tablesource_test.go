package tablesource

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/bigbag/papyrix-bringup/embedded"
	"github.com/bigbag/papyrix-bringup/internal/partition"
)

func TestOpen_Embedded(t *testing.T) {
	for _, name := range []string{Embedded, ""} {
		table, err := Open(name, DeviceOptions{})()
		if err != nil {
			t.Fatalf("Open(%q) error = %v", name, err)
		}
		if n := partition.NewWalker(table).Walk(func(partition.Record) {}); n != 8 {
			t.Errorf("Open(%q) walked %d records, want 8", name, n)
		}
	}
}

func TestOpen_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partitions.bin")
	image := partition.EncodeTable([]partition.RawRecord{
		{Type: partition.TypeData, SubType: partition.SubTypeNVS, Address: 0x9000, Size: 0x6000, Label: "nvs"},
		{Type: partition.TypeApp, SubType: partition.SubTypeFactory, Address: 0x10000, Size: 0x100000, Label: "factory"},
	})
	if err := os.WriteFile(path, image, 0o644); err != nil {
		t.Fatal(err)
	}

	table, err := Open(path, DeviceOptions{})()
	if err != nil {
		t.Fatalf("Open(file) error = %v", err)
	}

	var labels []string
	for r := range partition.All(table) {
		labels = append(labels, r.Label)
	}
	if len(labels) != 2 || labels[0] != "nvs" || labels[1] != "factory" {
		t.Errorf("labels = %v, want [nvs factory]", labels)
	}
}

func TestOpen_FileErrors(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "missing.bin"), DeviceOptions{})(); err == nil {
		t.Error("Open(missing file) error = nil")
	}

	corrupt := append([]byte{}, embedded.Partitions()...)
	corrupt[4] ^= 0xFF
	path := filepath.Join(t.TempDir(), "corrupt.bin")
	if err := os.WriteFile(path, corrupt, 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Open(path, DeviceOptions{})()
	if !errors.Is(err, partition.ErrChecksum) {
		t.Errorf("Open(corrupt) error = %v, want ErrChecksum", err)
	}
}
