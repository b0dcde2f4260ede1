package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/warraq-app/warraq/internal/auth"
	"github.com/warraq-app/warraq/internal/common"
)

// fakeRemote simulates the conversion service. Remote IDs encode the page
// index so tests can correlate calls with pages.
type fakeRemote struct {
	mu          sync.Mutex
	uploads     int
	exports     int
	deletes     int
	deletedIDs  []string
	uploadErrs  map[int]error // page index -> error (applied once, then cleared)
	exportErrs  map[int]error
	deleteErr   error
	latency     func(page int) time.Duration
	onUpload    func(page int)
	blockExport bool // export waits for ctx cancellation
}

func pageOf(s string) int {
	i := strings.LastIndexByte(s, '-')
	n, _ := strconv.Atoi(strings.TrimSuffix(s[i+1:], ".jpg"))
	return n
}

func (f *fakeRemote) Upload(ctx context.Context, imagePath, token string) (string, error) {
	page := pageOf(imagePath)
	if f.latency != nil {
		time.Sleep(f.latency(page))
	}
	f.mu.Lock()
	f.uploads++
	err := f.uploadErrs[page]
	delete(f.uploadErrs, page)
	f.mu.Unlock()
	if err != nil {
		return "", err
	}
	if f.onUpload != nil {
		f.onUpload(page)
	}
	return fmt.Sprintf("rid-%d", page), nil
}

func (f *fakeRemote) ExportText(ctx context.Context, remoteID, token string) (string, error) {
	page := pageOf(remoteID + ".jpg")
	if f.blockExport {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if f.latency != nil {
		time.Sleep(f.latency(page))
	}
	f.mu.Lock()
	f.exports++
	err := f.exportErrs[page]
	delete(f.exportErrs, page)
	f.mu.Unlock()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("text for page %d", page), nil
}

func (f *fakeRemote) Delete(ctx context.Context, remoteID, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	f.deletedIDs = append(f.deletedIDs, remoteID)
	return f.deleteErr
}

func (f *fakeRemote) counts() (uploads, exports, deletes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.uploads, f.exports, f.deletes
}

func pages(n int) []PageImage {
	imgs := make([]PageImage, n)
	for i := range imgs {
		imgs[i] = PageImage{Index: i, Path: fmt.Sprintf("page-%d.jpg", i)}
	}
	return imgs
}

func newOrchestrator(remote RemoteEngine) *Orchestrator {
	return NewOrchestrator(remote, auth.StaticProvider{AccessToken: "tok"}, slog.New(slog.DiscardHandler))
}

func TestExtractThreePagesConcurrencyTwo(t *testing.T) {
	remote := &fakeRemote{}
	o := newOrchestrator(remote)

	texts, pageErrs, err := o.Extract(context.Background(), pages(3), 2, nil)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(pageErrs) != 0 {
		t.Fatalf("unexpected page errors: %v", pageErrs)
	}
	if len(texts) != 3 {
		t.Fatalf("texts length = %d", len(texts))
	}
	for i, text := range texts {
		if want := fmt.Sprintf("text for page %d", i); text != want {
			t.Fatalf("texts[%d] = %q, want %q", i, text, want)
		}
	}
	up, ex, del := remote.counts()
	if up != 3 || ex != 3 || del != 3 {
		t.Fatalf("call counts = %d/%d/%d, want 3/3/3", up, ex, del)
	}
}

func TestExtractOrderInvariantUnderRandomLatency(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	remote := &fakeRemote{
		latency: func(int) time.Duration {
			return time.Duration(rng.Intn(12)) * time.Millisecond
		},
	}
	o := newOrchestrator(remote)

	texts, pageErrs, err := o.Extract(context.Background(), pages(16), 6, nil)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(pageErrs) != 0 {
		t.Fatalf("unexpected errors: %v", pageErrs)
	}
	for i, text := range texts {
		if want := fmt.Sprintf("text for page %d", i); text != want {
			t.Fatalf("completion order leaked into results: texts[%d] = %q", i, text)
		}
	}
}

func TestExtractPartialFailureContinuesBatch(t *testing.T) {
	remote := &fakeRemote{
		uploadErrs: map[int]error{2: errors.New("bad request (400)")},
	}
	o := newOrchestrator(remote)

	texts, pageErrs, err := o.Extract(context.Background(), pages(5), 3, nil)
	if err != nil {
		t.Fatalf("a per-page failure must not abort the batch: %v", err)
	}
	if len(pageErrs) != 1 || pageErrs[0].Index != 2 {
		t.Fatalf("page errors = %v, want one entry for index 2", pageErrs)
	}
	if texts[2] != "" {
		t.Fatalf("failed page slot = %q, want empty", texts[2])
	}
	// Every index yields either text or an error entry, never neither.
	errIdx := map[int]bool{}
	for _, pe := range pageErrs {
		errIdx[pe.Index] = true
	}
	for i, text := range texts {
		if text == "" && !errIdx[i] {
			t.Fatalf("page %d dropped silently", i)
		}
		if text != "" && errIdx[i] {
			t.Fatalf("page %d has both text and an error entry", i)
		}
	}
}

func TestExtractExportFailureRecordsError(t *testing.T) {
	remote := &fakeRemote{
		exportErrs: map[int]error{1: errors.New("unsupported content")},
	}
	o := newOrchestrator(remote)

	texts, pageErrs, err := o.Extract(context.Background(), pages(3), 2, nil)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(pageErrs) != 1 || pageErrs[0].Index != 1 {
		t.Fatalf("page errors = %v", pageErrs)
	}
	if texts[1] != "" {
		t.Fatalf("failed page slot = %q", texts[1])
	}
	// The artifact for the failed export must still get its delete attempt.
	_, _, del := remote.counts()
	if del != 3 {
		t.Fatalf("deletes = %d, want 3", del)
	}
}

func TestExtractDeleteFailureDoesNotFailPage(t *testing.T) {
	remote := &fakeRemote{deleteErr: errors.New("delete boom")}
	o := newOrchestrator(remote)

	texts, pageErrs, err := o.Extract(context.Background(), pages(2), 2, nil)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(pageErrs) != 0 {
		t.Fatalf("delete failures leaked into page errors: %v", pageErrs)
	}
	for i, text := range texts {
		if text == "" {
			t.Fatalf("texts[%d] empty", i)
		}
	}
}

func TestExtractCancellationSweepsUploadedArtifacts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	uploaded := make(chan int, 8)
	remote := &fakeRemote{
		blockExport: true,
		onUpload:    func(page int) { uploaded <- page },
	}
	o := newOrchestrator(remote)

	go func() {
		// Cancel once two of five uploads have completed.
		<-uploaded
		<-uploaded
		cancel()
	}()

	texts, pageErrs, err := o.Extract(ctx, pages(5), 2, nil)
	if !errors.Is(err, common.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	if texts != nil || pageErrs != nil {
		t.Fatal("cancellation must not return partial results")
	}
	up, _, del := remote.counts()
	if up < 2 {
		t.Fatalf("uploads = %d, want at least 2", up)
	}
	if del < 2 {
		t.Fatalf("delete attempts = %d, want one per uploaded artifact (>= 2)", del)
	}
	// Exactly the uploaded artifacts were deleted, each once.
	seen := map[string]int{}
	remote.mu.Lock()
	for _, id := range remote.deletedIDs {
		seen[id]++
	}
	remote.mu.Unlock()
	for id, n := range seen {
		if n != 1 {
			t.Fatalf("artifact %s deleted %d times", id, n)
		}
	}
}

func TestExtractCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	remote := &fakeRemote{}
	o := newOrchestrator(remote)

	_, _, err := o.Extract(ctx, pages(4), 2, nil)
	if !errors.Is(err, common.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	up, _, _ := remote.counts()
	if up != 0 {
		t.Fatalf("uploads after pre-cancelled start = %d", up)
	}
}

func TestExtractMissingCredentialIsJobFatal(t *testing.T) {
	remote := &fakeRemote{}
	o := NewOrchestrator(remote, auth.StaticProvider{}, slog.New(slog.DiscardHandler))

	texts, pageErrs, err := o.Extract(context.Background(), pages(3), 2, nil)
	if !errors.Is(err, common.ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
	if texts != nil || pageErrs != nil {
		t.Fatal("auth failure must not return partial results")
	}
}

func TestExtractProgressFiresPerTask(t *testing.T) {
	remote := &fakeRemote{}
	o := newOrchestrator(remote)

	var mu sync.Mutex
	var events []int
	var lastPct int
	_, _, err := o.Extract(context.Background(), pages(6), 3, func(done, total, pct int) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, done)
		lastPct = pct
		if total != 6 {
			t.Errorf("total = %d", total)
		}
	})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(events) != 6 {
		t.Fatalf("progress events = %d, want 6", len(events))
	}
	for i, done := range events {
		if done != i+1 {
			t.Fatalf("completed counter not monotonic: %v", events)
		}
	}
	if lastPct != 100 {
		t.Fatalf("final percentage = %d", lastPct)
	}
}

func TestExtractEmptyInput(t *testing.T) {
	o := newOrchestrator(&fakeRemote{})
	texts, pageErrs, err := o.Extract(context.Background(), nil, 4, nil)
	if err != nil || len(texts) != 0 || len(pageErrs) != 0 {
		t.Fatalf("empty input: %v %v %v", texts, pageErrs, err)
	}
}
