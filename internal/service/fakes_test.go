package service

import (
	"context"
	"sync"
	"time"

	"ruiquan-inspection/internal/domain"
	"ruiquan-inspection/internal/ledger"
	"ruiquan-inspection/internal/store"
)

// fakeLedger 可編程的帳本替身
type fakeLedger struct {
	mu sync.Mutex

	appended []appendCall
	// appendErr[partNo] 讓指定模穴列失敗
	appendErr map[string]error
	imageURL  string

	all        []domain.InspectionRecord
	history    map[string][]domain.InspectionRecord
	fetchCalls int

	updates   []ledger.UpdateStatusRequest
	updateErr error
}

type appendCall struct {
	row   domain.InspectionRecord
	photo *ledger.Photo
}

func (f *fakeLedger) Append(ctx context.Context, row domain.InspectionRecord, photo *ledger.Photo) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.appendErr[row.PartNo]; ok {
		return "", err
	}
	f.appended = append(f.appended, appendCall{row: row, photo: photo})
	if photo != nil {
		return f.imageURL, nil
	}
	return row.Image, nil
}

func (f *fakeLedger) FetchHistory(ctx context.Context, partNo string) ([]domain.InspectionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchCalls++
	return f.history[partNo], nil
}

func (f *fakeLedger) FetchAll(ctx context.Context) ([]domain.InspectionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchCalls++
	return f.all, nil
}

func (f *fakeLedger) UpdateStatus(ctx context.Context, req ledger.UpdateStatusRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates = append(f.updates, req)
	return nil
}

func (f *fakeLedger) Ping(ctx context.Context) error { return nil }

// fakeKV 記憶體 KV，記錄刪除過的鍵
type fakeKV struct {
	mu      sync.Mutex
	data    map[string]string
	deleted []string
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: map[string]string{}}
}

func (f *fakeKV) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	if !ok {
		return "", store.ErrMiss
	}
	return v, nil
}

func (f *fakeKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = value
	return nil
}

func (f *fakeKV) Del(ctx context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.data, k)
		f.deleted = append(f.deleted, k)
	}
	return nil
}

func (f *fakeKV) ScanKeys(ctx context.Context, pattern string) ([]string, error) {
	return nil, nil
}

// fakeNotifier 收集廣播出去的列
type fakeNotifier struct {
	mu   sync.Mutex
	rows []domain.InspectionRecord
}

func (f *fakeNotifier) NotifySubmission(ctx context.Context, rec domain.InspectionRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, rec)
}
