// Package cache repurposes the teacher's vector/full-text infrastructure
// (github.com/qdrant/go-client and github.com/typesense/typesense-go/v2,
// used in services/ingestion_service.go to index crawled web content) as
// a per-project dedup cache of previously-seen citation hostnames. The
// nightly scheduler re-runs the same prompts against largely the same
// set of cited domains night after night; the cache records each citation
// hostname's enrichment.MatchesDomain verdict so the post-enrichment warm
// step skips hostnames it has already seen. enrichment.Engine.Enrich does
// not read the cache. Typesense holds the exact
// (project, hostname) -> verdict mapping for O(1) lookup; Qdrant holds a
// cheap bigram-hashed vector per hostname so that near-duplicate hosts
// (a trailing slash, a "www." prefix, a differently-cased TLD) reuse an
// existing verdict instead of missing the exact-match cache and being
// treated as novel.
package cache

import (
	"context"
	"fmt"
	"strings"

	"github.com/qdrant/go-client/qdrant"
	"github.com/typesense/typesense-go/v2/typesense"
	"github.com/typesense/typesense-go/v2/typesense/api"
)

const (
	typesenseCollection = "citation_hostname_cache"
	qdrantCollection    = "citation_hostname_vectors"
	vectorSize          = 32
	similarityThreshold = 0.92
)

// Entry is a cached verdict for a single (project, hostname) pair:
// whether the hostname matched the project's configured domain list, and
// the normalized form the match was computed against.
type Entry struct {
	Hostname   string
	Normalized string
	Matched    bool
}

// HostnameCache dedupes citation-hostname presence checks across nightly
// re-runs of the same project. It is a cache, not a source of truth:
// callers must still be able to compute an Entry from scratch on a miss.
type HostnameCache struct {
	typesense *typesense.Client
	qdrant    qdrant.PointsClient
}

func New(typesenseClient *typesense.Client, qdrantClient qdrant.PointsClient) *HostnameCache {
	return &HostnameCache{typesense: typesenseClient, qdrant: qdrantClient}
}

// EnsureCollections creates the backing Typesense collection and Qdrant
// collection if they do not already exist. Safe to call on every process
// start, mirroring the teacher's main.go "create, ignore already-exists"
// pattern.
func EnsureCollections(ctx context.Context, typesenseClient *typesense.Client, qdrantCollections qdrant.CollectionsClient) error {
	facet := true
	schema := &api.CollectionSchema{
		Name: typesenseCollection,
		Fields: []api.Field{
			{Name: "project_id", Type: "string", Facet: &facet},
			{Name: "hostname", Type: "string"},
			{Name: "normalized", Type: "string"},
			{Name: "matched", Type: "bool"},
		},
	}
	if _, err := typesenseClient.Collections().Create(ctx, schema); err != nil && !strings.Contains(err.Error(), "already exists") {
		return fmt.Errorf("cache: create typesense collection: %w", err)
	}

	_, err := qdrantCollections.Create(ctx, &qdrant.CreateCollection{
		CollectionName: qdrantCollection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     vectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		return fmt.Errorf("cache: create qdrant collection: %w", err)
	}
	return nil
}

type cacheDoc struct {
	ID         string `json:"id"`
	ProjectID  string `json:"project_id"`
	Hostname   string `json:"hostname"`
	Normalized string `json:"normalized"`
	Matched    bool   `json:"matched"`
}

func docID(projectID, hostname string) string {
	return projectID + "_" + strings.ToLower(hostname)
}

// Lookup returns a cached verdict for hostname within projectID, trying
// the exact Typesense key first and falling back to Qdrant's
// nearest-neighbor hostname vector on a miss. ok is false if neither
// backend holds a usable verdict, meaning the caller must compute one
// from scratch (and should call Put to populate the cache).
func (c *HostnameCache) Lookup(ctx context.Context, projectID, hostname string) (Entry, bool) {
	doc, err := c.typesense.Collection(typesenseCollection).Document(docID(projectID, hostname)).Retrieve(ctx)
	if err == nil {
		if entry, ok := entryFromDocument(doc); ok {
			return entry, true
		}
	}

	entry, ok := c.lookupNearest(ctx, projectID, hostname)
	return entry, ok
}

func entryFromDocument(doc map[string]interface{}) (Entry, bool) {
	hostname, _ := doc["hostname"].(string)
	if hostname == "" {
		return Entry{}, false
	}
	normalized, _ := doc["normalized"].(string)
	matched, _ := doc["matched"].(bool)
	return Entry{Hostname: hostname, Normalized: normalized, Matched: matched}, true
}

func (c *HostnameCache) lookupNearest(ctx context.Context, projectID, hostname string) (Entry, bool) {
	vec := hostnameVector(hostname)
	resp, err := c.qdrant.Search(ctx, &qdrant.SearchPoints{
		CollectionName: qdrantCollection,
		Vector:         vec,
		Limit:          1,
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("project_id", projectID),
			},
		},
		WithPayload: qdrant.NewWithPayload(true),
	})
	if err != nil || len(resp.GetResult()) == 0 {
		return Entry{}, false
	}
	hit := resp.GetResult()[0]
	if hit.GetScore() < similarityThreshold {
		return Entry{}, false
	}
	payload := hit.GetPayload()
	return Entry{
		Hostname:   payload["hostname"].GetStringValue(),
		Normalized: payload["normalized"].GetStringValue(),
		Matched:    payload["matched"].GetBoolValue(),
	}, true
}

// Put records a freshly-computed verdict so that subsequent nightly runs
// (either for the exact hostname or a near-duplicate of it) can skip
// recomputing the brand/domain regex.
func (c *HostnameCache) Put(ctx context.Context, projectID string, entry Entry) error {
	doc := cacheDoc{
		ID:         docID(projectID, entry.Hostname),
		ProjectID:  projectID,
		Hostname:   entry.Hostname,
		Normalized: entry.Normalized,
		Matched:    entry.Matched,
	}
	if _, err := c.typesense.Collection(typesenseCollection).Documents().Import(ctx, []interface{}{doc}, &api.ImportDocumentsParams{Action: pointerTo("upsert")}); err != nil {
		return fmt.Errorf("cache: upsert typesense document: %w", err)
	}

	_, err := c.qdrant.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: qdrantCollection,
		Wait:           qdrant.Bool(true),
		Points: []*qdrant.PointStruct{
			{
				Id: &qdrant.PointId{Data: &qdrant.PointId_Uuid{Uuid: docID(projectID, entry.Hostname)}},
				Vectors: &qdrant.Vectors{
					Vectors: &qdrant.Vectors_Vector{Vector: &qdrant.Vector{Data: hostnameVector(entry.Hostname)}},
				},
				Payload: map[string]*qdrant.Value{
					"project_id": {Data: &qdrant.Value_StringValue{StringValue: projectID}},
					"hostname":   {Data: &qdrant.Value_StringValue{StringValue: entry.Hostname}},
					"normalized": {Data: &qdrant.Value_StringValue{StringValue: entry.Normalized}},
					"matched":    {Data: &qdrant.Value_BoolValue{BoolValue: entry.Matched}},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("cache: upsert qdrant point: %w", err)
	}
	return nil
}

func pointerTo(s string) *string { return &s }

// hostnameVector is a deterministic bag-of-bigrams hash embedding: it
// carries no semantic meaning, only enough locality that near-identical
// hostname strings land close together under cosine similarity.
func hostnameVector(hostname string) []float32 {
	lowered := strings.ToLower(strings.TrimSuffix(strings.TrimPrefix(hostname, "www."), "/"))
	vec := make([]float32, vectorSize)
	if len(lowered) < 2 {
		return vec
	}
	for i := 0; i < len(lowered)-1; i++ {
		bigram := lowered[i : i+2]
		h := uint32(2166136261)
		for _, b := range []byte(bigram) {
			h ^= uint32(b)
			h *= 16777619
		}
		vec[int(h)%vectorSize]++
	}
	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec
	}
	normRoot := sqrt32(norm)
	for i := range vec {
		vec[i] /= normRoot
	}
	return vec
}

func sqrt32(x float32) float32 {
	if x == 0 {
		return 0
	}
	z := x
	for i := 0; i < 20; i++ {
		z -= (z*z - x) / (2 * z)
	}
	return z
}
