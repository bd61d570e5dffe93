package recovery_test

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vsariola/lumo"
	"github.com/vsariola/lumo/library"
	"github.com/vsariola/lumo/recovery"
)

func open(t *testing.T, keep int) *recovery.Store {
	t.Helper()
	l := logrus.New()
	l.SetOutput(io.Discard)
	s, err := recovery.Open(filepath.Join(t.TempDir(), "sub", "recovery.db"), keep, logrus.NewEntry(l))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLatestAndPrune(t *testing.T) {
	s := open(t, 2)
	ctx := context.Background()
	base := time.Unix(1000, 0)
	for i, doc := range []string{"one", "two", "three"} {
		if err := s.Save(ctx, "show", []byte(doc), base.Add(time.Duration(i)*time.Second)); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}
	if err := s.Save(ctx, "other", []byte("x"), base); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	snap, err := s.Latest(ctx, "show")
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if string(snap.Document) != "three" || !snap.Saved.Equal(base.Add(2*time.Second)) {
		t.Fatalf("got %q saved at %v", snap.Document, snap.Saved)
	}
	list, err := s.List(ctx, "show")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected the oldest snapshot to be pruned, got %v", len(list))
	}
	if _, err := s.Latest(ctx, "missing"); !lumo.IsKind(err, lumo.ResourceNotFoundError) {
		t.Fatalf("expected a not found error, got %v", err)
	}
}

func TestSaveProject(t *testing.T) {
	s := open(t, 0)
	ctx := context.Background()
	p := library.NewProject()
	p.Tempo.BPM = 90
	if err := s.SaveProject(ctx, "show", p); err != nil {
		t.Fatalf("SaveProject failed: %v", err)
	}
	snap, err := s.Latest(ctx, "show")
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	q, _, err := library.Unmarshal(snap.Document)
	if err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if q.Tempo.BPM != 90 {
		t.Fatalf("got bpm %v", q.Tempo.BPM)
	}
}

func TestAutosave(t *testing.T) {
	s := open(t, 0)
	ctx, cancel := context.WithCancel(context.Background())
	calls := make(chan struct{}, 16)
	done := make(chan struct{})
	go func() {
		s.Autosave(ctx, "show", time.Millisecond, func() ([]byte, error) {
			select {
			case calls <- struct{}{}:
			default:
			}
			return []byte("doc"), nil
		})
		close(done)
	}()
	<-calls
	<-calls
	cancel()
	<-done
	if _, err := s.Latest(context.Background(), "show"); err != nil {
		t.Fatalf("expected an autosaved snapshot: %v", err)
	}
}
