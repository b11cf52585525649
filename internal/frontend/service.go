package frontend

import (
	"context"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/noterank/noterank/internal/cluster"
	"github.com/noterank/noterank/internal/config"
	"github.com/noterank/noterank/internal/embed"
	noteerr "github.com/noterank/noterank/internal/errors"
	"github.com/noterank/noterank/internal/recommend"
	"github.com/noterank/noterank/internal/search"
	"github.com/noterank/noterank/internal/store"
)

// ServiceConfig sizes the query-side adapter. Zero values fall back to the
// defaults below.
type ServiceConfig struct {
	// Workers is the parallel request cap; the admission gate holds
	// 2×Workers slots and rejects the excess with Request::Overloaded
	// rather than queueing unboundedly.
	Workers int
	// DefaultLimit is used when a request supplies no limit.
	DefaultLimit int
	// CandidateLimit is the default fts_k handed to the lexical searcher.
	CandidateLimit int
	// QueryCacheSize bounds the per-snapshot search result cache.
	QueryCacheSize int
	// UseHNSW enables the approximate candidate-narrowing index for the
	// semantic reranker on large candidate sets. The recommender's embed
	// mode is unaffected (always exact).
	UseHNSW bool
}

const (
	defaultWorkers        = 8
	defaultLimit          = 10
	defaultQueryCacheSize = 512
)

// FromConfig maps the loaded configuration's search section onto a
// ServiceConfig.
func FromConfig(cfg *config.Config) ServiceConfig {
	return ServiceConfig{
		CandidateLimit: cfg.Search.CandidateLimit,
		QueryCacheSize: cfg.Search.ClassifierCache,
		UseHNSW:        cfg.Search.UseHNSWRerank,
	}
}

func (c ServiceConfig) withDefaults() ServiceConfig {
	if c.Workers <= 0 {
		c.Workers = defaultWorkers
	}
	if c.DefaultLimit <= 0 {
		c.DefaultLimit = defaultLimit
	}
	if c.CandidateLimit <= 0 {
		c.CandidateLimit = search.DefaultFTSK
	}
	if c.QueryCacheSize <= 0 {
		c.QueryCacheSize = defaultQueryCacheSize
	}
	return c
}

// Service is the query frontend: it translates request parameters into
// calls against the search, recommend, and store layers and returns the
// wire-shape structs an HTTP layer would serialize. It owns the admission
// gate, the file-tree memo, and the embedding matrix snapshot used to
// serve each request deterministically.
type Service struct {
	cfg      ServiceConfig
	s        *store.Store
	embedder embed.Embedder
	orch     *search.Orchestrator
	rec      *recommend.Recommender
	tree     *TreeBuilder
	matrix   *store.MatrixCache

	gate chan struct{}

	// searchCache memoizes fused search results per (snapshot, query,
	// limit, fts_k). Entries never need invalidation: a rebuild publishes
	// a new snapshot id and old keys simply age out of the LRU.
	searchCache *lru.Cache[string, []search.Result]
}

// NewService wires a Service over an opened store and embedder adapter.
// Call Reload before serving to publish the first embedding matrix
// snapshot; until then semantic scoring falls back to per-passage store
// reads.
func NewService(s *store.Store, embedder embed.Embedder, cfg ServiceConfig) (*Service, error) {
	cfg = cfg.withDefaults()

	cache, err := lru.New[string, []search.Result](cfg.QueryCacheSize)
	if err != nil {
		return nil, err
	}

	matrix := store.NewMatrixCache()

	orch := search.NewOrchestrator(search.NewLexicalSearcher(s.Lexical()), s, embedder)
	orch.SetMatrixCache(matrix)

	rec := recommend.New(s, embedder.ModelName())
	rec.SetMatrixCache(matrix)

	return &Service{
		cfg:         cfg,
		s:           s,
		embedder:    embedder,
		orch:        orch,
		rec:         rec,
		tree:        NewTreeBuilder(s),
		matrix:      matrix,
		gate:        make(chan struct{}, 2*cfg.Workers),
		searchCache: cache,
	}, nil
}

// Reload builds a fresh embedding matrix snapshot from the store and
// publishes it atomically (the SIGHUP-equivalent reload signal). In-flight
// requests drain against the snapshot they already acquired.
func (svc *Service) Reload(ctx context.Context) error {
	m, err := store.BuildMatrix(ctx, svc.s, svc.embedder.ModelName())
	if err != nil {
		return err
	}
	svc.matrix.Swap(m)

	if svc.cfg.UseHNSW && m.Len() > 0 {
		vi, err := m.VectorIndex()
		if err != nil {
			return err
		}
		svc.orch.SetVectorIndex(vi)
	}
	return nil
}

// acquire claims an admission slot, returning Request::Overloaded when the
// bounded gate is full. The returned release func must be deferred.
func (svc *Service) acquire(ctx context.Context) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, noteerr.RequestCancelled(err)
	}
	select {
	case svc.gate <- struct{}{}:
		return func() { <-svc.gate }, nil
	default:
		return nil, noteerr.RequestOverloaded()
	}
}

func (svc *Service) snapshotID() string {
	if m := svc.matrix.Current(); m != nil {
		return m.SnapshotID
	}
	return "unloaded"
}

// Search serves GET /search: hybrid retrieval with the fused score,
// component scores, and match class per item. An empty or blank query
// returns an empty item list with total 0, not an error.
func (svc *Service) Search(ctx context.Context, query string, limit, ftsK int) (SearchResponse, error) {
	release, err := svc.acquire(ctx)
	if err != nil {
		return SearchResponse{}, err
	}
	defer release()

	if limit <= 0 {
		limit = svc.cfg.DefaultLimit
	}
	if ftsK <= 0 {
		ftsK = svc.cfg.CandidateLimit
	}

	query = strings.TrimSpace(query)
	zero := 0
	if query == "" {
		return SearchResponse{Mode: "hybrid", Total: &zero, Items: []SearchItem{}}, nil
	}

	results, err := svc.cachedSearch(ctx, query, limit, ftsK)
	if err != nil {
		return SearchResponse{}, err
	}

	items := make([]SearchItem, len(results))
	for i, r := range results {
		items[i] = SearchItem{
			ChunkID:       r.PassageID,
			FilePath:      r.FilePath,
			Heading:       r.Heading,
			Preview:       r.Preview,
			Score:         r.Score,
			LexicalScore:  r.LexicalScore,
			SemanticScore: r.SemanticScore,
			MatchClass:    r.Class,
		}
	}
	total := len(items)
	return SearchResponse{Mode: "hybrid", Total: &total, Items: items}, nil
}

func (svc *Service) cachedSearch(ctx context.Context, query string, limit, ftsK int) ([]search.Result, error) {
	key := fmt.Sprintf("%s|%d|%d|%s", svc.snapshotID(), limit, ftsK, query)
	if cached, ok := svc.searchCache.Get(key); ok {
		return cached, nil
	}
	results, err := svc.orch.Search(ctx, query, ftsK, limit)
	if err != nil {
		return nil, err
	}
	svc.searchCache.Add(key, results)
	return results, nil
}

// GetChunk serves GET /chunks/{id}: the passage record with its full body.
func (svc *Service) GetChunk(ctx context.Context, id int64) (ChunkRecord, error) {
	release, err := svc.acquire(ctx)
	if err != nil {
		return ChunkRecord{}, err
	}
	defer release()

	p, err := svc.s.GetPassage(ctx, id)
	if err != nil {
		return ChunkRecord{}, err
	}
	if p == nil {
		return ChunkRecord{}, noteerr.RequestNotFound(fmt.Sprintf("chunk %d", id))
	}
	return chunkRecord(*p), nil
}

// FileChunks serves GET /files/chunks: a file's passages in ordinal order.
func (svc *Service) FileChunks(ctx context.Context, filePath string) ([]ChunkRecord, error) {
	release, err := svc.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	if strings.TrimSpace(filePath) == "" {
		return nil, noteerr.RequestBadInput("file_path must not be empty")
	}
	passages, err := svc.s.GetPassagesByFile(ctx, filePath)
	if err != nil {
		return nil, err
	}
	if len(passages) == 0 {
		return nil, noteerr.RequestNotFound(fmt.Sprintf("file %s", filePath))
	}
	out := make([]ChunkRecord, len(passages))
	for i, p := range passages {
		out[i] = chunkRecord(p)
	}
	return out, nil
}

// FileTree serves GET /files/tree, memoized per store snapshot.
func (svc *Service) FileTree(ctx context.Context) (*TreeNode, error) {
	release, err := svc.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	return svc.tree.Build(ctx, svc.snapshotID())
}

// Related serves GET /chunks/{id}/related: passage-level relatedness.
func (svc *Service) Related(ctx context.Context, id int64, mode string, k int) ([]RelatedPassageItem, error) {
	release, err := svc.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	m, k, err := svc.relatedParams(ctx, id, mode, k)
	if err != nil {
		return nil, err
	}
	passages, err := svc.rec.RelatedPassages(ctx, id, m, k)
	if err != nil {
		return nil, err
	}
	out := make([]RelatedPassageItem, len(passages))
	for i, p := range passages {
		out[i] = RelatedPassageItem{
			ChunkID:  p.PassageID,
			FilePath: p.FilePath,
			Heading:  p.Heading,
			Preview:  p.Preview,
			Score:    p.Score,
			Reason:   p.Reason,
		}
	}
	return out, nil
}

// RelatedNotes serves GET /chunks/{id}/related-notes: file-level
// aggregation of the passage-level result.
func (svc *Service) RelatedNotes(ctx context.Context, id int64, mode string, k int) ([]RelatedFileItem, error) {
	release, err := svc.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	m, k, err := svc.relatedParams(ctx, id, mode, k)
	if err != nil {
		return nil, err
	}
	files, err := svc.rec.RelatedFiles(ctx, id, m, k)
	if err != nil {
		return nil, err
	}
	out := make([]RelatedFileItem, len(files))
	for i, f := range files {
		out[i] = RelatedFileItem{
			FilePath:      f.FilePath,
			Score:         f.Score,
			Reason:        f.Reason,
			MatchedChunks: f.MatchedChunks,
			TopChunkIDs:   f.TopPassageIDs,
		}
	}
	return out, nil
}

func (svc *Service) relatedParams(ctx context.Context, id int64, mode string, k int) (recommend.Mode, int, error) {
	var m recommend.Mode
	switch mode {
	case "", "embed":
		m = recommend.ModeEmbed
	case "cluster":
		m = recommend.ModeCluster
	default:
		return "", 0, noteerr.RequestBadInput(fmt.Sprintf("mode must be \"cluster\" or \"embed\", got %q", mode))
	}
	if k <= 0 {
		k = svc.cfg.DefaultLimit
	}

	p, err := svc.s.GetPassage(ctx, id)
	if err != nil {
		return "", 0, err
	}
	if p == nil {
		return "", 0, noteerr.RequestNotFound(fmt.Sprintf("chunk %d", id))
	}
	return m, k, nil
}

// Clusters serves GET /clusters: the active clustering's rows.
func (svc *Service) Clusters(ctx context.Context, limit int) ([]ClusterItem, error) {
	release, err := svc.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	clusters, err := svc.s.ListClusters(ctx, cluster.Method)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(clusters) > limit {
		clusters = clusters[:limit]
	}
	out := make([]ClusterItem, len(clusters))
	for i, c := range clusters {
		out[i] = clusterItem(c)
	}
	return out, nil
}

// Cluster serves GET /clusters/{id}: cluster meta plus up to limit member
// chunk ids.
func (svc *Service) Cluster(ctx context.Context, id int64, limit int) (ClusterDetail, error) {
	release, err := svc.acquire(ctx)
	if err != nil {
		return ClusterDetail{}, err
	}
	defer release()

	c, err := svc.s.GetCluster(ctx, id)
	if err != nil {
		return ClusterDetail{}, err
	}
	if c == nil {
		return ClusterDetail{}, noteerr.RequestNotFound(fmt.Sprintf("cluster %d", id))
	}
	members, err := svc.s.ClusterMembers(ctx, id)
	if err != nil {
		return ClusterDetail{}, err
	}
	if limit > 0 && len(members) > limit {
		members = members[:limit]
	}
	return ClusterDetail{ClusterItem: clusterItem(*c), MemberChunkIDs: members}, nil
}

// SuggestClusters serves GET /clusters/suggest: topic routing for a query.
func (svc *Service) SuggestClusters(ctx context.Context, query string, limit, ftsK int) ([]ClusterSuggestItem, error) {
	release, err := svc.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	if limit <= 0 {
		limit = svc.cfg.DefaultLimit
	}
	if ftsK <= 0 {
		ftsK = svc.cfg.CandidateLimit
	}
	suggestions, err := svc.orch.SuggestClusters(ctx, strings.TrimSpace(query), ftsK, limit)
	if err != nil {
		return nil, err
	}
	out := make([]ClusterSuggestItem, len(suggestions))
	for i, s := range suggestions {
		out[i] = ClusterSuggestItem{ClusterID: s.ClusterID, Name: s.Name, Score: s.Score}
	}
	return out, nil
}

// Health serves GET /health.
func (svc *Service) Health() HealthResponse {
	return HealthResponse{OK: true}
}

func chunkRecord(p store.Passage) ChunkRecord {
	return ChunkRecord{
		ChunkID:    p.ID,
		FilePath:   p.FilePath,
		Heading:    p.Heading,
		Ordinal:    p.Ordinal,
		Content:    p.Content,
		ContentLen: p.ContentLen,
	}
}

func clusterItem(c store.Cluster) ClusterItem {
	return ClusterItem{
		ClusterID: c.ID,
		Name:      c.Name,
		Summary:   c.Summary,
		Size:      c.Size,
		K:         c.K,
	}
}
