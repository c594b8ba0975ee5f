// Package backup exports user documents to a blob store as zstd-compressed
// JSON and restores them after schema validation.
package backup

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"twido/internal/blob"
	"twido/pkg/domain"
)

// Version is the envelope format written by Export.
const Version = 1

const (
	keyPrefix   = "backups/"
	keySuffix   = ".json.zst"
	keyTimeFmt  = "20060102T150405.000Z"
	guestUser   = "guest"
	contentType = "application/zstd"
	schemaURL   = "https://twido.local/schemas/backup.schema.json"
)

//go:embed backup.schema.json
var schemaJSON string

// ErrNoBackups is returned by Latest when a user has no stored backups.
var ErrNoBackups = errors.New("backup: none stored")

// Envelope is the decoded backup payload.
type Envelope struct {
	Version   int             `json:"version"`
	UserID    string          `json:"userId,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	Document  domain.Document `json:"document"`
}

// Source supplies the document to export.
type Source interface {
	Snapshot() domain.Document
}

// Target accepts a restored document.
type Target interface {
	ImportDocument(doc domain.Document)
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the timestamp source used for backup keys.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// Service writes and reads backups in a blob store.
type Service struct {
	store  blob.Store
	schema *jsonschema.Schema
	now    func() time.Time
	logger *slog.Logger
}

// New compiles the backup schema and returns a Service over store.
func New(store blob.Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("backup: nil blob store")
	}
	schema, err := compileSchema()
	if err != nil {
		return nil, err
	}
	s := &Service{store: store, schema: schema, now: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func compileSchema() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	if err := c.AddResource(schemaURL, strings.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("load backup schema: %w", err)
	}
	schema, err := c.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile backup schema: %w", err)
	}
	return schema, nil
}

// Prefix returns the key prefix holding userID's backups.
func Prefix(userID string) string {
	if userID == "" {
		userID = guestUser
	}
	return keyPrefix + userID + "/"
}

// Export writes src's current document under a new timestamped key.
func (s *Service) Export(ctx context.Context, userID string, src Source) (blob.Info, error) {
	env := Envelope{
		Version:   Version,
		UserID:    userID,
		CreatedAt: s.now().UTC(),
		Document:  src.Snapshot().Normalize(),
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return blob.Info{}, fmt.Errorf("encode backup: %w", err)
	}
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return blob.Info{}, err
	}
	if _, err := enc.Write(raw); err != nil {
		_ = enc.Close()
		return blob.Info{}, fmt.Errorf("compress backup: %w", err)
	}
	if err := enc.Close(); err != nil {
		return blob.Info{}, fmt.Errorf("compress backup: %w", err)
	}
	key := Prefix(userID) + env.CreatedAt.Format(keyTimeFmt) + keySuffix
	info, err := s.store.Put(ctx, key, &buf, blob.PutOptions{
		ContentType: contentType,
		Metadata:    map[string]string{"version": fmt.Sprint(Version), "tasks": fmt.Sprint(len(env.Document.Tasks))},
		IfAbsent:    true,
	})
	if err != nil {
		return blob.Info{}, fmt.Errorf("store backup: %w", err)
	}
	s.logger.Info("backup exported", "key", key, "bytes", info.Size, "tasks", len(env.Document.Tasks))
	return info, nil
}

// List returns userID's backups, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]blob.Info, error) {
	infos, err := s.store.List(ctx, Prefix(userID))
	if err != nil {
		return nil, err
	}
	out := infos[:0]
	for _, info := range infos {
		if strings.HasSuffix(info.Key, keySuffix) {
			out = append(out, info)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key > out[j].Key })
	return out, nil
}

// Latest returns the newest backup key for userID.
func (s *Service) Latest(ctx context.Context, userID string) (string, error) {
	infos, err := s.List(ctx, userID)
	if err != nil {
		return "", err
	}
	if len(infos) == 0 {
		return "", ErrNoBackups
	}
	return infos[0].Key, nil
}

// Load reads, decompresses and validates the backup at key.
func (s *Service) Load(ctx context.Context, key string) (Envelope, error) {
	_, rc, err := s.store.Get(ctx, key)
	if err != nil {
		return Envelope{}, err
	}
	defer func() { _ = rc.Close() }()
	dec, err := zstd.NewReader(rc)
	if err != nil {
		return Envelope{}, err
	}
	defer dec.Close()
	raw, err := io.ReadAll(dec)
	if err != nil {
		return Envelope{}, fmt.Errorf("decompress %s: %w", key, err)
	}
	return s.Decode(raw)
}

// Decode validates raw JSON against the backup schema and decodes it.
func (s *Service) Decode(raw []byte) (Envelope, error) {
	d := json.NewDecoder(bytes.NewReader(raw))
	d.UseNumber()
	var generic any
	if err := d.Decode(&generic); err != nil {
		return Envelope{}, fmt.Errorf("decode backup: %w", err)
	}
	if err := s.schema.Validate(generic); err != nil {
		return Envelope{}, fmt.Errorf("invalid backup: %w", err)
	}
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode backup: %w", err)
	}
	env.Document = env.Document.Normalize()
	return env, nil
}

// Restore loads key and hands its document to dst.
func (s *Service) Restore(ctx context.Context, key string, dst Target) (Envelope, error) {
	env, err := s.Load(ctx, key)
	if err != nil {
		return Envelope{}, err
	}
	dst.ImportDocument(env.Document)
	s.logger.Info("backup restored", "key", key, "tasks", len(env.Document.Tasks))
	return env, nil
}
