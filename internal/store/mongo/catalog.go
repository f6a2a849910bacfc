package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/lelloman/quentin-torrentino-sub000/internal/domain"
)

// CatalogStore implements ports.Catalog over a torrents collection keyed
// by info_hash, grounded on the teacher's upsert-and-merge repository
// idiom (internal/repository/mongo/repository.go's Update/toUpdateDoc).
type CatalogStore struct {
	collection *mongo.Collection
	now        func() time.Time
}

type sourceDoc struct {
	Indexer   string `bson:"indexer"`
	Magnet    string `bson:"magnet,omitempty"`
	URL       string `bson:"url,omitempty"`
	Seeders   int    `bson:"seeders"`
	Leechers  int    `bson:"leechers"`
	UpdatedAt int64  `bson:"updatedAt"`
}

type fileDoc struct {
	Path   string `bson:"path"`
	Length int64  `bson:"length"`
}

type catalogDoc struct {
	InfoHash    string      `bson:"_id"`
	Title       string      `bson:"title"`
	SizeBytes   int64       `bson:"sizeBytes"`
	Category    string      `bson:"category,omitempty"`
	FirstSeenAt int64       `bson:"firstSeenAt"`
	LastSeenAt  int64       `bson:"lastSeenAt"`
	SeenCount   int64       `bson:"seenCount"`
	Sources     []sourceDoc `bson:"sources"`
	Files       []fileDoc   `bson:"files,omitempty"`
}

// NewCatalogStore builds a CatalogStore over the given collection.
func NewCatalogStore(client *mongo.Client, dbName, collectionName string) *CatalogStore {
	return &CatalogStore{
		collection: client.Database(dbName).Collection(collectionName),
		now:        time.Now,
	}
}

// EnsureIndexes creates the catalog collection's indices: a text index
// over title for Search, a secondary index on category, and a descending
// index on lastSeenAt.
func (s *CatalogStore) EnsureIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "title", Value: "text"}}},
		{Keys: bson.D{{Key: "category", Value: 1}}},
		{Keys: bson.D{{Key: "lastSeenAt", Value: -1}}},
	}
	_, err := s.collection.Indexes().CreateMany(ctx, models)
	return err
}

// Store upserts each candidate's observation. Sources are merged by
// indexer rather than appended: re-observing the same torrent from the
// same indexer (the normal case — every search re-observes existing
// catalog entries) replaces that indexer's entry in place instead of
// duplicating it, keeping "unique per (info_hash, indexer)" (§3). Files
// are persisted on first insert only; StoreFiles remains the path that
// replaces the file list wholesale once it is known.
func (s *CatalogStore) Store(ctx context.Context, candidates []domain.TorrentCandidate) (int, error) {
	newCount := 0
	now := s.now().UTC().Unix()

	for _, c := range candidates {
		if c.InfoHash == "" {
			continue
		}

		var existing catalogDoc
		err := s.collection.FindOne(ctx, bson.M{"_id": c.InfoHash}).Decode(&existing)
		isNew := errors.Is(err, mongo.ErrNoDocuments)
		if err != nil && !isNew {
			return newCount, domain.WrapDatabase(err)
		}

		byIndexer := make(map[string]sourceDoc, len(existing.Sources)+len(c.Sources))
		for _, src := range existing.Sources {
			byIndexer[src.Indexer] = src
		}
		for _, src := range c.Sources {
			byIndexer[src.Indexer] = sourceDoc{
				Indexer:   src.Indexer,
				Magnet:    src.Magnet,
				URL:       src.URL,
				Seeders:   src.Seeders,
				Leechers:  src.Leechers,
				UpdatedAt: src.UpdatedAt,
			}
		}
		sources := make([]sourceDoc, 0, len(byIndexer))
		for _, src := range byIndexer {
			sources = append(sources, src)
		}

		setFields := bson.M{
			"lastSeenAt": now,
			"sources":    sources,
		}
		if isNew && len(c.Files) > 0 {
			files := make([]fileDoc, 0, len(c.Files))
			for _, f := range c.Files {
				files = append(files, fileDoc{Path: f.Path, Length: f.Length})
			}
			setFields["files"] = files
		}

		res, err := s.collection.UpdateOne(ctx,
			bson.M{"_id": c.InfoHash},
			bson.M{
				"$setOnInsert": bson.M{
					"_id":         c.InfoHash,
					"title":       c.Title,
					"sizeBytes":   c.SizeBytes,
					"category":    c.Category,
					"firstSeenAt": now,
				},
				"$set": setFields,
				"$inc": bson.M{"seenCount": 1},
			},
			options.Update().SetUpsert(true),
		)
		if err != nil {
			return newCount, domain.WrapDatabase(err)
		}
		if res.UpsertedCount > 0 {
			newCount++
		}
	}
	return newCount, nil
}

func (s *CatalogStore) Search(ctx context.Context, query string, limit int) ([]domain.CachedTorrent, error) {
	filter := bson.M{}
	findOpts := options.Find().SetSort(bson.D{{Key: "lastSeenAt", Value: -1}})
	if query != "" {
		filter["$text"] = bson.M{"$search": query}
		findOpts.SetSort(bson.D{{Key: "score", Value: bson.M{"$meta": "textScore"}}})
		findOpts.SetProjection(bson.M{"score": bson.M{"$meta": "textScore"}})
	}
	if limit > 0 {
		findOpts.SetLimit(int64(limit))
	}

	cursor, err := s.collection.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, domain.WrapDatabase(err)
	}
	defer cursor.Close(ctx)

	var docs []catalogDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, domain.WrapDatabase(err)
	}

	out := make([]domain.CachedTorrent, 0, len(docs))
	for _, doc := range docs {
		out = append(out, fromCatalogDoc(doc))
	}
	return out, nil
}

func (s *CatalogStore) Get(ctx context.Context, infoHash string) (domain.CachedTorrent, error) {
	var doc catalogDoc
	if err := s.collection.FindOne(ctx, bson.M{"_id": infoHash}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.CachedTorrent{}, &domain.NotFoundError{ID: infoHash}
		}
		return domain.CachedTorrent{}, domain.WrapDatabase(err)
	}
	return fromCatalogDoc(doc), nil
}

func (s *CatalogStore) StoreFiles(ctx context.Context, infoHash, title string, files []domain.CatalogFile) error {
	docs := make([]fileDoc, 0, len(files))
	for _, f := range files {
		docs = append(docs, fileDoc{Path: f.Path, Length: f.Length})
	}
	now := s.now().UTC().Unix()
	_, err := s.collection.UpdateOne(ctx,
		bson.M{"_id": infoHash},
		bson.M{
			"$setOnInsert": bson.M{
				"_id":         infoHash,
				"title":       title,
				"firstSeenAt": now,
			},
			"$set": bson.M{
				"files":      docs,
				"lastSeenAt": now,
			},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return domain.WrapDatabase(err)
	}
	return nil
}

func (s *CatalogStore) GetFiles(ctx context.Context, infoHash string) ([]domain.CatalogFile, error) {
	t, err := s.Get(ctx, infoHash)
	if err != nil {
		return nil, err
	}
	return t.Files, nil
}

func (s *CatalogStore) Exists(ctx context.Context, infoHash string) (bool, error) {
	count, err := s.collection.CountDocuments(ctx, bson.M{"_id": infoHash}, options.Count().SetLimit(1))
	if err != nil {
		return false, domain.WrapDatabase(err)
	}
	return count > 0, nil
}

func (s *CatalogStore) Remove(ctx context.Context, infoHash string) error {
	res, err := s.collection.DeleteOne(ctx, bson.M{"_id": infoHash})
	if err != nil {
		return domain.WrapDatabase(err)
	}
	if res.DeletedCount == 0 {
		return &domain.NotFoundError{ID: infoHash}
	}
	return nil
}

func (s *CatalogStore) Clear(ctx context.Context) error {
	if _, err := s.collection.DeleteMany(ctx, bson.M{}); err != nil {
		return domain.WrapDatabase(err)
	}
	return nil
}

func (s *CatalogStore) Stats(ctx context.Context) (domain.CatalogStats, error) {
	totalTorrents, err := s.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return domain.CatalogStats{}, domain.WrapDatabase(err)
	}

	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "totalFiles", Value: bson.D{{Key: "$sum", Value: bson.D{{Key: "$size", Value: bson.D{{Key: "$ifNull", Value: bson.A{"$files", bson.A{}}}}}}}}},
			{Key: "totalSize", Value: bson.D{{Key: "$sum", Value: "$sizeBytes"}}},
			{Key: "oldest", Value: bson.D{{Key: "$min", Value: "$firstSeenAt"}}},
			{Key: "newest", Value: bson.D{{Key: "$max", Value: "$lastSeenAt"}}},
		}}},
	}
	cursor, err := s.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return domain.CatalogStats{}, domain.WrapDatabase(err)
	}
	defer cursor.Close(ctx)

	var agg struct {
		TotalFiles int64 `bson:"totalFiles"`
		TotalSize  int64 `bson:"totalSize"`
		Oldest     int64 `bson:"oldest"`
		Newest     int64 `bson:"newest"`
	}
	if cursor.Next(ctx) {
		if err := cursor.Decode(&agg); err != nil {
			return domain.CatalogStats{}, domain.WrapDatabase(err)
		}
	}

	indexers, err := s.collection.Distinct(ctx, "sources.indexer", bson.M{})
	if err != nil {
		return domain.CatalogStats{}, domain.WrapDatabase(err)
	}

	stats := domain.CatalogStats{
		TotalTorrents:  totalTorrents,
		TotalFiles:     agg.TotalFiles,
		TotalSize:      agg.TotalSize,
		UniqueIndexers: int64(len(indexers)),
	}
	if agg.Oldest > 0 {
		t := time.Unix(agg.Oldest, 0).UTC()
		stats.OldestEntry = &t
	}
	if agg.Newest > 0 {
		t := time.Unix(agg.Newest, 0).UTC()
		stats.NewestEntry = &t
	}
	return stats, nil
}

func fromCatalogDoc(doc catalogDoc) domain.CachedTorrent {
	sources := make([]domain.TorrentSourceRef, 0, len(doc.Sources))
	for _, s := range doc.Sources {
		sources = append(sources, domain.TorrentSourceRef{
			Indexer:   s.Indexer,
			Magnet:    s.Magnet,
			URL:       s.URL,
			Seeders:   s.Seeders,
			Leechers:  s.Leechers,
			UpdatedAt: s.UpdatedAt,
		})
	}
	files := make([]domain.CatalogFile, 0, len(doc.Files))
	for _, f := range doc.Files {
		files = append(files, domain.CatalogFile{Path: f.Path, Length: f.Length})
	}
	return domain.CachedTorrent{
		InfoHash:    doc.InfoHash,
		Title:       doc.Title,
		SizeBytes:   doc.SizeBytes,
		Category:    doc.Category,
		FirstSeenAt: time.Unix(doc.FirstSeenAt, 0).UTC(),
		LastSeenAt:  time.Unix(doc.LastSeenAt, 0).UTC(),
		SeenCount:   doc.SeenCount,
		Sources:     sources,
		Files:       files,
	}
}
