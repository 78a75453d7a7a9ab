package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/ucero0/acquisitiond/internal/domain"
	"github.com/ucero0/acquisitiond/internal/reconciler"
	"github.com/ucero0/acquisitiond/internal/scanner"
)

// --- fakes -----------------------------------------------------------------

type fakeCatalog struct {
	watchlists        map[string][]domain.WatchlistEntry
	inLibrary         map[string]bool
	removed           []string
	readdedRatingKeys []string
}

func (f *fakeCatalog) FetchWatchlist(ctx context.Context, token string) ([]domain.WatchlistEntry, error) {
	return f.watchlists[token], nil
}

func (f *fakeCatalog) ExistsInLibrary(ctx context.Context, token string, entry domain.WatchlistEntry) (bool, error) {
	return f.inLibrary[entry.GUID], nil
}

func (f *fakeCatalog) RemoveFromWatchlist(ctx context.Context, token, ratingKey string) error {
	f.removed = append(f.removed, ratingKey)
	return nil
}

func (f *fakeCatalog) AddToWatchlist(ctx context.Context, token, ratingKey string) error {
	f.readdedRatingKeys = append(f.readdedRatingKeys, ratingKey)
	return nil
}

type fakeIndexer struct {
	results     map[string][]domain.IndexerResult
	enqueued    []string
	failEnqueue map[string]bool
	queries     []string
}

func (f *fakeIndexer) Search(ctx context.Context, query string, kind domain.Kind) ([]domain.IndexerResult, error) {
	f.queries = append(f.queries, query)
	return f.results[query], nil
}

func (f *fakeIndexer) Enqueue(ctx context.Context, releaseGUID string, indexerID int64) error {
	if f.failEnqueue[releaseGUID] {
		return domain.ErrTransport
	}
	f.enqueued = append(f.enqueued, releaseGUID)
	return nil
}

type fakeDownloader struct {
	active  []domain.TorrentStatus
	removed []string
}

func (f *fakeDownloader) ListActive(ctx context.Context) ([]domain.TorrentStatus, error) {
	return f.active, nil
}

func (f *fakeDownloader) Remove(ctx context.Context, hash string, alsoDeleteData bool) error {
	f.removed = append(f.removed, hash)
	return nil
}

type fakeMetadata struct {
	byTitle map[string]*domain.OriginalTitle
}

func (f *fakeMetadata) OriginalTitleAndLanguage(ctx context.Context, title string, year int, kind domain.Kind) (*domain.OriginalTitle, error) {
	return f.byTitle[title], nil
}

type fakeFilesystem struct {
	existing map[string]bool
	moved    [][2]string
}

func (f *fakeFilesystem) QuarantinePath(name string) string              { return "/quarantine/" + name }
func (f *fakeFilesystem) LibraryDestination(kind domain.Kind, name string) string {
	return "/library/" + string(kind) + "/" + name
}
func (f *fakeFilesystem) StripNonMedia(path string) (int, error) { return 0, nil }
func (f *fakeFilesystem) Move(src, dst string) error {
	f.moved = append(f.moved, [2]string{src, dst})
	return nil
}
func (f *fakeFilesystem) Exists(path string) bool { return f.existing[path] }

// fakeScanner returns the verdict registered for a path, or a clean verdict.
type fakeScanner struct {
	verdicts map[string]*scanner.Verdict
}

func (f *fakeScanner) Scan(path string) (*scanner.Verdict, error) {
	if v, ok := f.verdicts[path]; ok {
		return v, nil
	}
	return &scanner.Verdict{ScannedFiles: []string{path}}, nil
}

type fakeSelector struct{}

func (fakeSelector) Select(results []domain.IndexerResult) []domain.Candidate {
	candidates := make([]domain.Candidate, 0, len(results))
	for _, r := range results {
		if r.Seeders < 1 {
			continue
		}
		candidates = append(candidates, domain.Candidate{IndexerResult: r, Score: r.Seeders})
	}
	// stable sort by score desc, mimicking internal/selection.Selector
	for i := 1; i < len(candidates); i++ {
		for j := i; j > 0 && candidates[j].Score > candidates[j-1].Score; j-- {
			candidates[j], candidates[j-1] = candidates[j-1], candidates[j]
		}
	}
	return candidates
}

type fakeReconciler struct {
	result reconciler.Result
	calls  int
}

func (f *fakeReconciler) Reconcile(ctx context.Context) (reconciler.Result, error) {
	f.calls++
	return f.result, nil
}

type fakeWatchUsers struct {
	users []domain.WatchUser
}

func (f *fakeWatchUsers) ListActive(ctx context.Context) ([]domain.WatchUser, error) {
	return f.users, nil
}

type fakeJobRepo struct {
	jobs        map[string]domain.DownloadJob
	inFlight    map[string]bool
	created     []domain.DownloadJob
	deleted     []string
	duplicateOf map[string]bool // torrent hashes that should be rejected as duplicate
}

func newFakeJobRepo() *fakeJobRepo {
	return &fakeJobRepo{jobs: map[string]domain.DownloadJob{}, inFlight: map[string]bool{}, duplicateOf: map[string]bool{}}
}

func (f *fakeJobRepo) Get(ctx context.Context, hash string) (*domain.DownloadJob, error) {
	j, ok := f.jobs[hash]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &j, nil
}

func (f *fakeJobRepo) IsGUIDInFlight(ctx context.Context, guid string) (bool, error) {
	return f.inFlight[guid], nil
}

func (f *fakeJobRepo) Create(ctx context.Context, j domain.DownloadJob) error {
	if f.duplicateOf[j.TorrentHash] {
		return domain.ErrDuplicateKey
	}
	f.created = append(f.created, j)
	f.jobs[j.TorrentHash] = j
	return nil
}

func (f *fakeJobRepo) Delete(ctx context.Context, hash string) error {
	f.deleted = append(f.deleted, hash)
	delete(f.jobs, hash)
	return nil
}

type fakeScanRepo struct {
	infected map[string]bool
	created  []domain.ScanRecord
}

func (f *fakeScanRepo) HasInfected(ctx context.Context, releaseGUID string) (bool, error) {
	return f.infected[releaseGUID], nil
}

func (f *fakeScanRepo) Create(ctx context.Context, s domain.ScanRecord) (int64, error) {
	f.created = append(f.created, s)
	return int64(len(f.created)), nil
}

func (f *fakeScanRepo) SetDestination(ctx context.Context, scanID int64, destinationPath string) error {
	return nil
}

// --- tests -------------------------------------------------------------

func newHarness() (*Orchestrator, *fakeCatalog, *fakeIndexer, *fakeDownloader, *fakeJobRepo, *fakeScanRepo) {
	catalog := &fakeCatalog{watchlists: map[string][]domain.WatchlistEntry{}, inLibrary: map[string]bool{}}
	indexer := &fakeIndexer{results: map[string][]domain.IndexerResult{}, failEnqueue: map[string]bool{}}
	downloader := &fakeDownloader{}
	metadata := &fakeMetadata{byTitle: map[string]*domain.OriginalTitle{}}
	filesystem := &fakeFilesystem{existing: map[string]bool{}}
	jobs := newFakeJobRepo()
	scans := &fakeScanRepo{infected: map[string]bool{}}
	watchUsers := &fakeWatchUsers{}
	rec := &fakeReconciler{}
	sc := &fakeScanner{verdicts: map[string]*scanner.Verdict{}}

	o := New(catalog, indexer, downloader, sc, metadata, filesystem, fakeSelector{}, rec, watchUsers, jobs, scans, Config{}, zerolog.Nop())
	return o, catalog, indexer, downloader, jobs, scans
}

func TestRun_HappyPathEnglishMovie(t *testing.T) {
	catalog := &fakeCatalog{watchlists: map[string][]domain.WatchlistEntry{
		"tok1": {{GUID: "catalog://m/1", RatingKey: "rk1", Title: "Blade Runner", Year: 2049, Kind: domain.KindMovie}},
	}, inLibrary: map[string]bool{}}
	indexer := &fakeIndexer{failEnqueue: map[string]bool{}, results: map[string][]domain.IndexerResult{
		"Blade Runner 2049": {
			{ReleaseGUID: "rg1", IndexerID: 1, Title: "Blade.Runner.2049.2160p.BluRay.TrueHD-GRP", Seeders: 50},
			{ReleaseGUID: "rg2", IndexerID: 1, Title: "Blade.Runner.2049.720p.WEBRip", Seeders: 4},
		},
	}}
	downloader := &fakeDownloader{active: []domain.TorrentStatus{
		{Hash: "aa01", Name: "Blade.Runner.2049.2160p.BluRay.TrueHD-GRP", TimeAdded: time.Now().Add(-1 * time.Second)},
	}}
	jobs := newFakeJobRepo()
	watchUsers := &fakeWatchUsers{users: []domain.WatchUser{{UserID: 1, AccessToken: "tok1", Active: true}}}
	metadata := &fakeMetadata{byTitle: map[string]*domain.OriginalTitle{
		"Blade Runner": {Title: "Blade Runner", Language: "en"},
	}}

	o := New(catalog, indexer, downloader, nil, metadata, &fakeFilesystem{existing: map[string]bool{}}, fakeSelector{},
		&fakeReconciler{}, watchUsers, jobs, &fakeScanRepo{infected: map[string]bool{}},
		Config{AppearanceDelay: time.Millisecond}, zerolog.Nop())

	summary, err := o.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, summary.Processed)
	require.Equal(t, 1, summary.Searched)
	require.Equal(t, 1, summary.AddedToDownloader)

	require.Len(t, jobs.created, 1)
	require.Equal(t, "aa01", jobs.created[0].TorrentHash)
	require.Equal(t, "catalog://m/1", jobs.created[0].GUID)
	require.Equal(t, "rg1", jobs.created[0].ReleaseGUID)
	require.Equal(t, []string{"rk1"}, catalog.removed)
}

func TestRun_SpanishLanguageUsesOriginalTitle(t *testing.T) {
	catalog := &fakeCatalog{watchlists: map[string][]domain.WatchlistEntry{
		"tok1": {{GUID: "catalog://m/2", RatingKey: "rk2", Title: "Pan's Labyrinth", Year: 2006, Kind: domain.KindMovie}},
	}, inLibrary: map[string]bool{}}
	indexer := &fakeIndexer{results: map[string][]domain.IndexerResult{}, failEnqueue: map[string]bool{}}
	downloader := &fakeDownloader{}
	metadata := &fakeMetadata{byTitle: map[string]*domain.OriginalTitle{
		"Pan's Labyrinth": {Title: "El laberinto del fauno", Language: "es"},
	}}
	jobs := newFakeJobRepo()
	scans := &fakeScanRepo{infected: map[string]bool{}}
	watchUsers := &fakeWatchUsers{users: []domain.WatchUser{{UserID: 1, AccessToken: "tok1", Active: true}}}

	o := New(catalog, indexer, downloader, nil, metadata, &fakeFilesystem{existing: map[string]bool{}}, fakeSelector{},
		&fakeReconciler{}, watchUsers, jobs, scans, Config{AppearanceDelay: time.Millisecond}, zerolog.Nop())

	_, err := o.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, []string{"El laberinto del fauno 2006"}, indexer.queries)
}

func TestRun_AllCandidatesFailToAppear(t *testing.T) {
	catalog := &fakeCatalog{watchlists: map[string][]domain.WatchlistEntry{
		"tok1": {{GUID: "catalog://m/3", RatingKey: "rk3", Title: "Nope", Year: 2020, Kind: domain.KindMovie}},
	}, inLibrary: map[string]bool{}}
	indexer := &fakeIndexer{failEnqueue: map[string]bool{}, results: map[string][]domain.IndexerResult{
		"Nope 2020": {
			{ReleaseGUID: "rg1", Title: "Nope.2020.2160p", Seeders: 10},
			{ReleaseGUID: "rg2", Title: "Nope.2020.1080p", Seeders: 8},
			{ReleaseGUID: "rg3", Title: "Nope.2020.720p", Seeders: 5},
		},
	}}
	downloader := &fakeDownloader{} // never shows a matching torrent
	jobs := newFakeJobRepo()
	watchUsers := &fakeWatchUsers{users: []domain.WatchUser{{UserID: 1, AccessToken: "tok1", Active: true}}}

	o := New(catalog, indexer, downloader, nil, &fakeMetadata{byTitle: map[string]*domain.OriginalTitle{}},
		&fakeFilesystem{existing: map[string]bool{}}, fakeSelector{}, &fakeReconciler{}, watchUsers, jobs,
		&fakeScanRepo{infected: map[string]bool{}}, Config{AppearanceDelay: time.Millisecond}, zerolog.Nop())

	summary, err := o.Run(context.Background())
	require.NoError(t, err)
	require.Empty(t, jobs.created)
	require.Empty(t, catalog.removed)
	require.Empty(t, summary.Errors)
}

func TestScanAndFile_InfectionRequeues(t *testing.T) {
	o, catalog, _, downloader, jobs, scans := newHarness()
	jobs.jobs["bb02"] = domain.DownloadJob{
		TorrentHash: "bb02", GUID: "catalog://m/4", ReleaseGUID: "rg4",
		RatingKey: "rk4", AccessToken: "tok1", FileName: "Some.Movie.mkv", Kind: domain.KindMovie,
	}
	fs := o.filesystem.(*fakeFilesystem)
	fs.existing["/quarantine/Some.Movie.mkv"] = true
	o.scanner.(*fakeScanner).verdicts["/quarantine/Some.Movie.mkv"] = &scanner.Verdict{
		Infected: true, ThreatName: "EICAR-Test",
		ScannedFiles: []string{"/quarantine/Some.Movie.mkv"}, InfectedFiles: []string{"/quarantine/Some.Movie.mkv"},
	}

	result, err := o.ScanAndFile(context.Background(), "bb02")
	require.NoError(t, err)
	require.Equal(t, "infected", result.Status)
	require.True(t, result.Infected)

	require.Len(t, scans.created, 1)
	require.True(t, scans.created[0].Infected)

	require.Equal(t, []string{"bb02"}, downloader.removed)
	require.Equal(t, []string{"bb02"}, jobs.deleted)
	require.Equal(t, []string{"rk4"}, catalog.readdedRatingKeys)
}

func TestScanAndFile_CleanMovesAndLeavesJob(t *testing.T) {
	o, _, _, _, jobs, scans := newHarness()
	jobs.jobs["cc03"] = domain.DownloadJob{
		TorrentHash: "cc03", ReleaseGUID: "rg5", FileName: "Clean.Movie.mkv", Kind: domain.KindMovie,
	}
	fs := o.filesystem.(*fakeFilesystem)
	fs.existing["/quarantine/Clean.Movie.mkv"] = true

	result, err := o.ScanAndFile(context.Background(), "cc03")
	require.NoError(t, err)
	require.Equal(t, "clean", result.Status)
	require.Equal(t, "/library/movie/Clean.Movie.mkv", result.DestinationPath)

	require.Len(t, fs.moved, 1)
	require.Equal(t, [2]string{"/quarantine/Clean.Movie.mkv", "/library/movie/Clean.Movie.mkv"}, fs.moved[0])

	_, stillThere := jobs.jobs["cc03"]
	require.True(t, stillThere)
	require.Len(t, scans.created, 1)
	require.False(t, scans.created[0].Infected)
}

func TestRun_DuplicateGuardSkipsSearch(t *testing.T) {
	catalog := &fakeCatalog{watchlists: map[string][]domain.WatchlistEntry{
		"tok1": {{GUID: "catalog://m/9", RatingKey: "rk9", Title: "Already Queued", Year: 2020, Kind: domain.KindMovie}},
	}, inLibrary: map[string]bool{}}
	indexer := &fakeIndexer{results: map[string][]domain.IndexerResult{}, failEnqueue: map[string]bool{}}
	jobs := newFakeJobRepo()
	jobs.inFlight["catalog://m/9"] = true
	watchUsers := &fakeWatchUsers{users: []domain.WatchUser{{UserID: 1, AccessToken: "tok1", Active: true}}}

	o := New(catalog, indexer, &fakeDownloader{}, nil, &fakeMetadata{byTitle: map[string]*domain.OriginalTitle{}},
		&fakeFilesystem{existing: map[string]bool{}}, fakeSelector{}, &fakeReconciler{}, watchUsers, jobs,
		&fakeScanRepo{infected: map[string]bool{}}, Config{}, zerolog.Nop())

	summary, err := o.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, summary.Searched)
	require.Equal(t, []string{"rk9"}, catalog.removed)
}

func TestFindAppearedTorrent_PicksBestSimilarityAmongInWindowTorrents(t *testing.T) {
	now := time.Now()
	downloader := &fakeDownloader{active: []domain.TorrentStatus{
		{Hash: "wrong", Name: "Some.Other.Release.2020.1080p", TimeAdded: now.Add(-1 * time.Second)},
		{Hash: "right", Name: "Blade.Runner.2049.2160p.BluRay.TrueHD-GRP", TimeAdded: now.Add(-2 * time.Second)},
	}}

	o := New(&fakeCatalog{}, &fakeIndexer{}, downloader, nil, &fakeMetadata{}, &fakeFilesystem{existing: map[string]bool{}},
		fakeSelector{}, &fakeReconciler{}, &fakeWatchUsers{}, newFakeJobRepo(), &fakeScanRepo{infected: map[string]bool{}},
		Config{TimeWindow: 3 * time.Second}, zerolog.Nop())

	match, err := o.findAppearedTorrent(context.Background(), "Blade Runner 2049 2160p BluRay TrueHD")
	require.NoError(t, err)
	require.NotNil(t, match)
	require.Equal(t, "right", match.Hash, "both torrents fall within the window; the better similarity match must win, not listing order")
}

func TestFindAppearedTorrent_ExcludesFutureTimeAdded(t *testing.T) {
	now := time.Now()
	downloader := &fakeDownloader{active: []domain.TorrentStatus{
		{Hash: "future", Name: "Blade.Runner.2049.2160p.BluRay.TrueHD-GRP", TimeAdded: now.Add(2 * time.Second)},
	}}

	o := New(&fakeCatalog{}, &fakeIndexer{}, downloader, nil, &fakeMetadata{}, &fakeFilesystem{existing: map[string]bool{}},
		fakeSelector{}, &fakeReconciler{}, &fakeWatchUsers{}, newFakeJobRepo(), &fakeScanRepo{infected: map[string]bool{}},
		Config{TimeWindow: 3 * time.Second, SimilarityFloor: 0.6}, zerolog.Nop())

	match, err := o.findAppearedTorrent(context.Background(), "Totally Unrelated Title")
	require.NoError(t, err)
	require.Nil(t, match, "a torrent added in the future must not be treated as an in-window match")
}
