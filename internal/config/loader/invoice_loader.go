// Package loader keeps the invoice list in sync with its file on disk.
package loader

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"giftbuyer/internal/config"
	"giftbuyer/internal/gift"
	"giftbuyer/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// FileConfig is the layout of the invoices file.
type FileConfig struct {
	Invoices []config.InvoiceSpec `yaml:"invoices"`
}

// Snapshot is one successfully loaded version of the file.
type Snapshot struct {
	Version  int64
	LoadedAt time.Time
	Invoices []gift.Invoice
}

// ChangeListener is called after every successful reload.
type ChangeListener func(Snapshot)

// InvoiceLoader reads the invoices file and watches it for changes. A file
// that fails to parse or validate is rejected and the previous snapshot stays
// in effect.
type InvoiceLoader struct {
	path     string
	fallback int64
	schema   *jsonschema.Schema
	v        *viper.Viper

	mu        sync.RWMutex
	snapshot  Snapshot
	listeners []ChangeListener
}

// NewInvoiceLoader loads path once and starts watching it.
func NewInvoiceLoader(path string, fallbackUserID int64) (*InvoiceLoader, error) {
	l, err := newInvoiceLoader(path, fallbackUserID)
	if err != nil {
		return nil, err
	}
	l.v.OnConfigChange(func(evt fsnotify.Event) {
		if evt.Op&(fsnotify.Write|fsnotify.Create) == 0 {
			return
		}
		if err := l.Reload(); err != nil {
			logger.Errorf("invoice reload failed (%s): %v", evt.Name, err)
			return
		}
		l.notify()
	})
	l.v.WatchConfig()
	return l, nil
}

func newInvoiceLoader(path string, fallbackUserID int64) (*InvoiceLoader, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("invoice loader requires path")
	}
	schema, err := compileInvoiceSchema()
	if err != nil {
		return nil, fmt.Errorf("compile invoice schema failed: %w", err)
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	l := &InvoiceLoader{path: path, fallback: fallbackUserID, schema: schema, v: v}
	if err := l.Reload(); err != nil {
		return nil, err
	}
	return l, nil
}

// Current returns the version and invoices of the latest good snapshot.
func (l *InvoiceLoader) Current() (int64, []gift.Invoice) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.snapshot.Version, cloneInvoices(l.snapshot.Invoices)
}

// Subscribe registers fn and immediately delivers the current snapshot.
func (l *InvoiceLoader) Subscribe(fn ChangeListener) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	l.listeners = append(l.listeners, fn)
	snap := cloneSnapshot(l.snapshot)
	l.mu.Unlock()
	go deliver(fn, snap)
}

func (l *InvoiceLoader) notify() {
	l.mu.RLock()
	snap := cloneSnapshot(l.snapshot)
	listeners := append([]ChangeListener(nil), l.listeners...)
	l.mu.RUnlock()
	for _, fn := range listeners {
		go deliver(fn, snap)
	}
}

func deliver(fn ChangeListener, snap Snapshot) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("invoice listener panic: %v", r)
		}
	}()
	fn(snap)
}

// Reload re-reads the file. On error the current snapshot is kept.
func (l *InvoiceLoader) Reload() error {
	specs, err := l.readFile()
	if err != nil {
		return err
	}
	invoices, err := BuildInvoices(specs, l.fallback, time.Now())
	if err != nil {
		return fmt.Errorf("invoice file %s: %w", filepath.Base(l.path), err)
	}
	l.mu.Lock()
	l.snapshot = Snapshot{
		Version:  l.snapshot.Version + 1,
		LoadedAt: time.Now(),
		Invoices: invoices,
	}
	version := l.snapshot.Version
	l.mu.Unlock()
	logger.Infof("Invoice loader loaded %d invoices from %s (version=%d)", len(invoices), filepath.Base(l.path), version)
	return nil
}

func (l *InvoiceLoader) readFile() ([]config.InvoiceSpec, error) {
	raw, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("read invoice file failed: %w", err)
	}
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse invoice file failed: %w", err)
	}
	if err := validateDocument(l.schema, doc); err != nil {
		return nil, fmt.Errorf("invoice file failed schema validation: %w", err)
	}
	var cfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse invoice file failed: %w", err)
	}
	return cfg.Invoices, nil
}

func cloneSnapshot(src Snapshot) Snapshot {
	dst := src
	dst.Invoices = cloneInvoices(src.Invoices)
	return dst
}
