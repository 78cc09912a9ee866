package store

import (
	"context"
	"testing"
	"time"
)

func TestBadgerSaveLoad(t *testing.T) {
	b, err := NewBadger(t.TempDir(), 10*time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	ctx := context.Background()

	key, err := b.Save(ctx, testState())
	if err != nil {
		t.Fatal(err)
	}

	got, ok, err := b.Load(ctx, key)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("freshly saved entry not found")
	}
	if got.Semester != "25v" || got.Alias["TMA4100"] != "Matte" {
		t.Errorf("loaded payload mismatch: %+v", got)
	}

	if _, ok, _ := b.Load(ctx, "unknown-key"); ok {
		t.Error("unknown key reported as found")
	}
}

func TestBadgerTTL(t *testing.T) {
	b, err := NewBadger(t.TempDir(), time.Second)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	ctx := context.Background()
	key, err := b.Save(ctx, testState())
	if err != nil {
		t.Fatal(err)
	}

	if _, ok, _ := b.Load(ctx, key); !ok {
		t.Fatal("entry should be live before the TTL")
	}

	time.Sleep(1500 * time.Millisecond)

	if _, ok, _ := b.Load(ctx, key); ok {
		t.Error("entry still loadable after the TTL")
	}
}
