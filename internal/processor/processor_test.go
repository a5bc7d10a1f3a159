package processor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/requestarr/requestarr/internal/classifier"
	"github.com/requestarr/requestarr/internal/requests"
	"github.com/requestarr/requestarr/internal/testutil"
)

type fakeClassifier struct {
	matches map[string]*classifier.Candidate
	panics  map[string]bool
	calls   int
}

func (f *fakeClassifier) BestMatch(ctx context.Context, query string) *classifier.Candidate {
	f.calls++
	if f.panics[query] {
		panic("catalog client blew up")
	}
	return f.matches[query]
}

type fakeMovieManager struct {
	ok     bool
	adds   []int
	titles []string
}

func (f *fakeMovieManager) AddMovie(ctx context.Context, tmdbID int, title string) bool {
	f.adds = append(f.adds, tmdbID)
	f.titles = append(f.titles, title)
	return f.ok
}

type fakeTVManager struct {
	ok   bool
	adds []int
}

func (f *fakeTVManager) AddSeries(ctx context.Context, tvdbID int, title string) bool {
	f.adds = append(f.adds, tvdbID)
	return f.ok
}

type fakeMusicManager struct {
	ok    bool
	names []string
	mbids []string
}

func (f *fakeMusicManager) AddArtist(ctx context.Context, name, musicBrainzID string) bool {
	f.names = append(f.names, name)
	f.mbids = append(f.mbids, musicBrainzID)
	return f.ok
}

type fakeResolver struct {
	ids   map[int]int
	calls int
}

func (f *fakeResolver) GetTVDBID(ctx context.Context, tmdbID int) (int, error) {
	f.calls++
	return f.ids[tmdbID], nil
}

type fixture struct {
	store      *requests.Store
	classifier *fakeClassifier
	movies     *fakeMovieManager
	tv         *fakeTVManager
	music      *fakeMusicManager
	resolver   *fakeResolver
	processor  *Processor
	cleanup    func()
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	tdb := testutil.NewTestDB(t)
	f := &fixture{
		store:      requests.NewStore(tdb.Conn, testutil.NopLogger()),
		classifier: &fakeClassifier{matches: map[string]*classifier.Candidate{}, panics: map[string]bool{}},
		movies:     &fakeMovieManager{ok: true},
		tv:         &fakeTVManager{ok: true},
		music:      &fakeMusicManager{ok: true},
		resolver:   &fakeResolver{ids: map[int]int{}},
		cleanup:    tdb.Close,
	}
	f.processor = New(f.store, f.classifier, f.movies, f.tv, f.music, f.resolver, testutil.NopLogger())
	return f
}

func TestProcessPending_MovieSuccess(t *testing.T) {
	f := newFixture(t)
	defer f.cleanup()
	ctx := context.Background()

	req, err := f.store.Create(ctx, "u", "Inception", requests.PriorityMedium)
	require.NoError(t, err)

	f.classifier.matches["Inception"] = &classifier.Candidate{
		Title:      "Inception",
		Kind:       classifier.KindMovie,
		Manager:    classifier.ManagerRadarr,
		Confidence: 0.9,
		ExternalID: "27205",
	}

	result, err := f.processor.ProcessPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, &BatchResult{Processed: 1, Sent: 1, Failed: 0}, result)

	got, err := f.store.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, requests.StatusSentToRadarr, got.Status)
	assert.Equal(t, "radarr", got.ArrService)
	assert.Equal(t, "27205", got.ExternalID)
	assert.InDelta(t, 0.9, got.ConfidenceScore, 1e-9)
	assert.NotEmpty(t, got.ClassificationData)
	assert.Equal(t, []int{27205}, f.movies.adds)
}

func TestProcessPending_NoConfidentMatch(t *testing.T) {
	f := newFixture(t)
	defer f.cleanup()
	ctx := context.Background()

	req, err := f.store.Create(ctx, "u", "gibberish query", requests.PriorityMedium)
	require.NoError(t, err)

	result, err := f.processor.ProcessPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)

	got, err := f.store.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, requests.StatusFailedClassification, got.Status)
	assert.Empty(t, f.movies.adds)
}

func TestProcessPending_MovieManagerRejection(t *testing.T) {
	f := newFixture(t)
	defer f.cleanup()
	ctx := context.Background()

	req, err := f.store.Create(ctx, "u", "Inception", requests.PriorityMedium)
	require.NoError(t, err)

	f.movies.ok = false
	f.classifier.matches["Inception"] = &classifier.Candidate{
		Title: "Inception", Kind: classifier.KindMovie, Manager: classifier.ManagerRadarr,
		Confidence: 0.9, ExternalID: "27205",
	}

	_, err = f.processor.ProcessPending(ctx)
	require.NoError(t, err)

	got, err := f.store.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, requests.StatusFailedRadarr, got.Status)
	// Classification persisted before the failed routing attempt.
	assert.Equal(t, "radarr", got.ArrService)
	assert.InDelta(t, 0.9, got.ConfidenceScore, 1e-9)
}

func TestProcessPending_MovieMissingExternalID(t *testing.T) {
	f := newFixture(t)
	defer f.cleanup()
	ctx := context.Background()

	req, err := f.store.Create(ctx, "u", "Inception", requests.PriorityMedium)
	require.NoError(t, err)

	f.classifier.matches["Inception"] = &classifier.Candidate{
		Title: "Inception", Kind: classifier.KindMovie, Manager: classifier.ManagerRadarr,
		Confidence: 0.9,
	}

	_, err = f.processor.ProcessPending(ctx)
	require.NoError(t, err)

	got, err := f.store.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, requests.StatusFailedMissingExternalID, got.Status)
	assert.Empty(t, f.movies.adds)
}

func TestProcessPending_SeriesWithTVDBID(t *testing.T) {
	f := newFixture(t)
	defer f.cleanup()
	ctx := context.Background()

	req, err := f.store.Create(ctx, "u", "Breaking Bad", requests.PriorityMedium)
	require.NoError(t, err)

	f.classifier.matches["Breaking Bad"] = &classifier.Candidate{
		Title: "Breaking Bad", Kind: classifier.KindTV, Manager: classifier.ManagerSonarr,
		Confidence: 0.85, ExternalID: "81189",
		Extra: map[string]string{"tmdb_id": "1396"},
	}

	_, err = f.processor.ProcessPending(ctx)
	require.NoError(t, err)

	got, err := f.store.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, requests.StatusSentToSonarr, got.Status)
	assert.Equal(t, []int{81189}, f.tv.adds)
	assert.Zero(t, f.resolver.calls, "no secondary resolution needed when TVDB id is present")
}

func TestProcessPending_SeriesSecondaryResolution(t *testing.T) {
	f := newFixture(t)
	defer f.cleanup()
	ctx := context.Background()

	req, err := f.store.Create(ctx, "u", "Obscure Show", requests.PriorityMedium)
	require.NoError(t, err)

	// Classification could only supply the TMDB fallback identifier.
	f.classifier.matches["Obscure Show"] = &classifier.Candidate{
		Title: "Obscure Show", Kind: classifier.KindTV, Manager: classifier.ManagerSonarr,
		Confidence: 0.7, ExternalID: "555",
		Extra: map[string]string{"tmdb_id": "555"},
	}
	f.resolver.ids[555] = 9999

	_, err = f.processor.ProcessPending(ctx)
	require.NoError(t, err)

	got, err := f.store.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, requests.StatusSentToSonarr, got.Status)
	assert.Equal(t, []int{9999}, f.tv.adds)
	assert.Equal(t, "9999", got.ExternalID, "resolved identifier persisted")
	assert.Equal(t, 1, f.resolver.calls)
}

func TestProcessPending_SeriesNoIdentifierAtAll(t *testing.T) {
	f := newFixture(t)
	defer f.cleanup()
	ctx := context.Background()

	req, err := f.store.Create(ctx, "u", "Obscure Show", requests.PriorityMedium)
	require.NoError(t, err)

	f.classifier.matches["Obscure Show"] = &classifier.Candidate{
		Title: "Obscure Show", Kind: classifier.KindTV, Manager: classifier.ManagerSonarr,
		Confidence: 0.7, ExternalID: "555",
		Extra: map[string]string{"tmdb_id": "555"},
	}
	// Secondary resolution also comes back empty.

	_, err = f.processor.ProcessPending(ctx)
	require.NoError(t, err)

	got, err := f.store.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, requests.StatusFailedMissingExternalID, got.Status)
	assert.Empty(t, f.tv.adds)
}

func TestProcessPending_MusicNameOnly(t *testing.T) {
	f := newFixture(t)
	defer f.cleanup()
	ctx := context.Background()

	req, err := f.store.Create(ctx, "u", "Radiohead", requests.PriorityMedium)
	require.NoError(t, err)

	// No identity ID: the music manager accepts a name-based add.
	f.classifier.matches["Radiohead"] = &classifier.Candidate{
		Title: "Radiohead", Kind: classifier.KindMusic, Manager: classifier.ManagerLidarr,
		Confidence: 0.8,
	}

	_, err = f.processor.ProcessPending(ctx)
	require.NoError(t, err)

	got, err := f.store.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, requests.StatusSentToLidarr, got.Status)
	assert.Equal(t, []string{"Radiohead"}, f.music.names)
	assert.Equal(t, []string{""}, f.music.mbids)
}

func TestProcessPending_PanicIsolatedPerRequest(t *testing.T) {
	f := newFixture(t)
	defer f.cleanup()
	ctx := context.Background()

	bad, err := f.store.Create(ctx, "u", "explodes", requests.PriorityMedium)
	require.NoError(t, err)
	good, err := f.store.Create(ctx, "u", "Inception", requests.PriorityMedium)
	require.NoError(t, err)

	f.classifier.panics["explodes"] = true
	f.classifier.matches["Inception"] = &classifier.Candidate{
		Title: "Inception", Kind: classifier.KindMovie, Manager: classifier.ManagerRadarr,
		Confidence: 0.9, ExternalID: "27205",
	}

	result, err := f.processor.ProcessPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, &BatchResult{Processed: 2, Sent: 1, Failed: 1}, result)

	gotBad, err := f.store.Get(ctx, bad.ID)
	require.NoError(t, err)
	assert.Equal(t, requests.StatusFailedException, gotBad.Status)

	gotGood, err := f.store.Get(ctx, good.ID)
	require.NoError(t, err)
	assert.Equal(t, requests.StatusSentToRadarr, gotGood.Status)
}

func TestProcessPending_ReusesPersistedClassification(t *testing.T) {
	f := newFixture(t)
	defer f.cleanup()
	ctx := context.Background()

	req, err := f.store.Create(ctx, "u", "Inception", requests.PriorityMedium)
	require.NoError(t, err)
	require.NoError(t, f.store.SaveClassification(ctx, req.ID, "movie", "radarr", "27205", 0.9,
		[]byte(`{"title":"Inception","media_type":"movie","service":"radarr","confidence":0.9,"external_id":"27205"}`)))

	_, err = f.processor.ProcessPending(ctx)
	require.NoError(t, err)

	assert.Zero(t, f.classifier.calls, "already-classified request must not be re-classified")
	got, err := f.store.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, requests.StatusSentToRadarr, got.Status)
	assert.Equal(t, []int{27205}, f.movies.adds)
}

func TestProcessPending_EmptyBatch(t *testing.T) {
	f := newFixture(t)
	defer f.cleanup()

	result, err := f.processor.ProcessPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &BatchResult{}, result)
}
