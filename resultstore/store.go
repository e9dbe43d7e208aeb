package resultstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/exemplar"
	"github.com/hupe1980/exemplar/blobstore"
	"github.com/hupe1980/exemplar/codec"
	"github.com/hupe1980/exemplar/internal/hash"
	"github.com/hupe1980/exemplar/internal/resource"
)

var (
	// ErrIncomplete is returned by Load when some ranks have not written a manifest.
	ErrIncomplete = errors.New("resultstore: incomplete run")
	// ErrInconsistent is returned when rank manifests disagree.
	ErrInconsistent = errors.New("resultstore: inconsistent run")
	// ErrCorrupt is returned when a blob does not match the checksum in its manifest.
	ErrCorrupt = errors.New("resultstore: corrupt blob")
)

// Store saves and loads results through a blob store.
type Store struct {
	blobs       blobstore.BlobStore
	codec       codec.Codec
	compression Compression
	logger      *exemplar.Logger
	now         func() time.Time

	limits resource.Config
	ctrl   *resource.Controller
}

// Option configures a Store.
type Option func(*Store)

// WithCodec sets the codec for segment and center blobs. The default is JSON.
func WithCodec(c codec.Codec) Option {
	return func(s *Store) {
		if c != nil {
			s.codec = c
		}
	}
}

// WithCompression sets the blob compression. The default is zstd.
func WithCompression(c Compression) Option {
	return func(s *Store) { s.compression = c }
}

// WithLogger sets the logger.
func WithLogger(l *exemplar.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithConcurrency bounds the number of segment blobs written at once.
// The default is resource.DefaultMaxConcurrentWrites.
func WithConcurrency(n int) Option {
	return func(s *Store) { s.limits.MaxConcurrentWrites = int64(n) }
}

// WithWriteRateLimit throttles blob writes to bytesPerSec. Zero means unlimited.
func WithWriteRateLimit(bytesPerSec int64) Option {
	return func(s *Store) { s.limits.IOLimitBytesPerSec = bytesPerSec }
}

// New returns a Store writing to blobs.
func New(blobs blobstore.BlobStore, opts ...Option) *Store {
	s := &Store{
		blobs:       blobs,
		codec:       codec.Default,
		compression: CompressionZSTD,
		logger:      exemplar.NoopLogger(),
		now:         time.Now,
	}
	for _, fn := range opts {
		fn(s)
	}
	s.ctrl = resource.NewController(s.limits)
	return s
}

// WriteStats reports what a Store has written so far.
type WriteStats struct {
	BytesWritten int64
	PeakWrites   int64
	WriteWaits   int64
}

// WriteStats returns the bytes written, the highest number of concurrent writes and
// how many writes queued for a slot.
func (s *Store) WriteStats() WriteStats {
	st := s.ctrl.Stats()
	return WriteStats{BytesWritten: st.BytesWritten, PeakWrites: st.PeakWrites, WriteWaits: st.WriteWaits}
}

// Segment names one input segment and its item count.
type Segment struct {
	Name   string
	Length int
}

type segmentRecord struct {
	Assignments []int     `json:"assignments"`
	Distances   []float64 `json:"distances"`
}

func rankDir(runID string, rank int) string {
	return path.Join(runID, fmt.Sprintf("rank-%04d", rank))
}

func (s *Store) blobName(dir, base string) string {
	return path.Join(dir, base+"."+s.codec.Name()+s.compression.Ext())
}

// writeChunk is the unit in which blob writes are admitted by the rate limit.
const writeChunk = 256 << 10

// put encodes, compresses and streams v to a new blob, returning the checksum of the
// stored bytes. A failed write leaves no blob behind where the backend can discard it.
func (s *Store) put(ctx context.Context, name string, v any) (uint32, error) {
	data, err := s.codec.Marshal(v)
	if err != nil {
		return 0, fmt.Errorf("encode %s: %w", name, err)
	}
	framed, err := compress(data, s.compression)
	if err != nil {
		return 0, fmt.Errorf("compress %s: %w", name, err)
	}
	if err := s.ctrl.AcquireWrite(ctx); err != nil {
		return 0, err
	}
	defer s.ctrl.ReleaseWrite()

	w, err := s.blobs.Create(ctx, name)
	if err != nil {
		return 0, err
	}
	if err := s.stream(ctx, w, framed); err != nil {
		if a, ok := w.(blobstore.Aborter); ok {
			_ = a.Abort()
		} else {
			_ = w.Close()
		}
		return 0, fmt.Errorf("write %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return 0, fmt.Errorf("write %s: %w", name, err)
	}
	return hash.CRC32C(framed), nil
}

func (s *Store) stream(ctx context.Context, w blobstore.WritableBlob, data []byte) error {
	for lo := 0; lo < len(data); lo += writeChunk {
		chunk := data[lo:min(lo+writeChunk, len(data))]
		if err := s.ctrl.AcquireIO(ctx, len(chunk)); err != nil {
			return err
		}
		if _, err := w.Write(chunk); err != nil {
			return err
		}
	}
	return w.Sync()
}

// get reads the frame header first so a truncated or foreign blob is rejected before
// its payload is fetched.
func (s *Store) get(ctx context.Context, c codec.Codec, name string, checksum uint32, v any) error {
	b, err := s.blobs.Open(ctx, name)
	if err != nil {
		return err
	}
	defer b.Close()

	framed := make([]byte, frameHeaderSize, max(b.Size(), frameHeaderSize))
	if n, err := b.ReadAt(ctx, framed, 0); n < frameHeaderSize {
		if err == nil || errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: %s: %w: %d bytes", ErrCorrupt, name, errCorruptFrame, n)
		}
		return err
	}
	kind, size, err := parseFrameHeader(framed)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrCorrupt, name, err)
	}
	if rest := b.Size() - frameHeaderSize; rest > 0 {
		rc, err := b.ReadRange(ctx, frameHeaderSize, rest)
		if err != nil {
			return err
		}
		buf := bytes.NewBuffer(framed)
		_, err = buf.ReadFrom(rc)
		rc.Close()
		if err != nil {
			return err
		}
		framed = buf.Bytes()
	}

	if err := hash.Verify(name, framed, checksum); err != nil {
		return fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	data, err := decodeFrame(kind, size, framed[frameHeaderSize:])
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if err := c.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

// Save writes the local part of res, split into segments, and returns the manifest.
// The segment lengths must sum to the number of local items. Rank 0 also stores the
// centers. The manifest is written last, so a run is visible only once complete.
func Save[T any](ctx context.Context, s *Store, res *exemplar.Result[T], segments []Segment) (*Manifest, error) {
	if res.RunID == "" {
		return nil, fmt.Errorf("resultstore: result has no run id")
	}
	lengths := make([]int, len(segments))
	for i, seg := range segments {
		lengths[i] = seg.Length
	}
	parts, err := res.Partition(lengths)
	if err != nil {
		return nil, err
	}

	dir := rankDir(res.RunID, res.Rank)
	m := &Manifest{
		RunID:           res.RunID,
		Algorithm:       res.Algorithm,
		Rank:            res.Rank,
		Size:            max(len(res.Lengths), 1),
		Codec:           s.codec.Name(),
		Compression:     s.compression,
		CreatedAt:       s.now().UTC(),
		CenterIDs:       res.CenterIDs,
		CenterIndices:   res.CenterIndices,
		CenterLocations: parts.CenterLocations,
		Segments:        make([]SegmentInfo, len(segments)),
		Summary:         newSummary(res.Summary()),
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, seg := range segments {
		name := s.blobName(dir, fmt.Sprintf("segment-%05d", i))
		m.Segments[i] = SegmentInfo{Name: seg.Name, Length: seg.Length, Path: name}
		rec := segmentRecord{Assignments: parts.Assignments[i], Distances: parts.Distances[i]}
		g.Go(func() error {
			sum, err := s.put(gctx, name, rec)
			m.Segments[i].Checksum = sum
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if res.Rank == 0 {
		m.CentersPath = s.blobName(res.RunID, "centers")
		if m.CentersChecksum, err = s.put(ctx, m.CentersPath, res.Centers); err != nil {
			return nil, err
		}
	}

	data, err := encodeManifest(m)
	if err != nil {
		return nil, err
	}
	if err := s.blobs.Put(ctx, path.Join(dir, ManifestFileName), data); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "result saved",
		"run_id", m.RunID,
		"rank", m.Rank,
		"segments", len(m.Segments),
		"codec", m.Codec,
		"compression", string(m.Compression),
	)
	return m, nil
}

// Manifests returns the manifests of a run in rank order.
func (s *Store) Manifests(ctx context.Context, runID string) ([]*Manifest, error) {
	names, err := s.blobs.List(ctx, runID+"/")
	if err != nil {
		return nil, err
	}
	var out []*Manifest
	for _, name := range names {
		if path.Base(name) != ManifestFileName {
			continue
		}
		data, err := blobstore.ReadAll(ctx, s.blobs, name)
		if err != nil {
			return nil, err
		}
		m, err := decodeManifest(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		out = append(out, m)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("run %s: %w", runID, blobstore.ErrNotFound)
	}
	slices.SortFunc(out, func(a, b *Manifest) int { return a.Rank - b.Rank })
	return out, nil
}

// Run is a loaded result.
type Run[T any] struct {
	RunID     string
	Algorithm string
	CenterIDs []exemplar.ItemID
	Segments  []SegmentInfo
	*exemplar.Partitioned[T]
}

// Load reads every rank of a run and joins their segments in rank order.
func Load[T any](ctx context.Context, s *Store, runID string) (*Run[T], error) {
	manifests, err := s.Manifests(ctx, runID)
	if err != nil {
		return nil, err
	}
	first := manifests[0]
	if len(manifests) != first.Size {
		return nil, fmt.Errorf("%w: %d of %d ranks", ErrIncomplete, len(manifests), first.Size)
	}

	run := &Run[T]{
		RunID:     first.RunID,
		Algorithm: first.Algorithm,
		CenterIDs: first.CenterIDs,
		Partitioned: &exemplar.Partitioned[T]{
			CenterLocations: make([]exemplar.Location, len(first.CenterIndices)),
		},
	}
	for c := range run.CenterLocations {
		run.CenterLocations[c] = exemplar.Location{Segment: -1, Offset: -1}
	}

	for rank, m := range manifests {
		if m.Rank != rank || m.RunID != first.RunID || len(m.CenterIndices) != len(first.CenterIndices) {
			return nil, fmt.Errorf("%w: manifest of rank %d", ErrInconsistent, m.Rank)
		}
		dec, ok := codec.ByName(m.Codec)
		if !ok {
			return nil, fmt.Errorf("resultstore: unknown codec %q", m.Codec)
		}

		base := len(run.Segments)
		for c, loc := range m.CenterLocations {
			if loc.Segment >= 0 {
				run.CenterLocations[c] = exemplar.Location{Segment: base + loc.Segment, Offset: loc.Offset}
			}
		}

		for _, seg := range m.Segments {
			var rec segmentRecord
			if err := s.get(ctx, dec, seg.Path, seg.Checksum, &rec); err != nil {
				return nil, err
			}
			if len(rec.Assignments) != seg.Length || len(rec.Distances) != seg.Length {
				return nil, fmt.Errorf("%w: segment %s holds %d items, manifest says %d",
					ErrInconsistent, seg.Path, len(rec.Assignments), seg.Length)
			}
			run.Assignments = append(run.Assignments, rec.Assignments)
			run.Distances = append(run.Distances, rec.Distances)
			run.Segments = append(run.Segments, seg)
		}

		if m.CentersPath != "" {
			if err := s.get(ctx, dec, m.CentersPath, m.CentersChecksum, &run.Centers); err != nil {
				return nil, err
			}
		}
	}
	return run, nil
}

// Runs lists the ids of all runs with at least one manifest.
func (s *Store) Runs(ctx context.Context) ([]string, error) {
	names, err := s.blobs.List(ctx, "")
	if err != nil {
		return nil, err
	}
	var runs []string
	for _, name := range names {
		if path.Base(name) != ManifestFileName {
			continue
		}
		run, _, _ := strings.Cut(name, "/")
		runs = append(runs, run)
	}
	return slices.Compact(runs), nil
}

// Delete removes every blob of a run.
func (s *Store) Delete(ctx context.Context, runID string) error {
	names, err := s.blobs.List(ctx, runID+"/")
	if err != nil {
		return err
	}
	for _, name := range names {
		if err := s.blobs.Delete(ctx, name); err != nil {
			return err
		}
	}
	return nil
}
