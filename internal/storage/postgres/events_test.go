package postgres

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"jamesfarrell.me/vidextract/internal/storage/db"
	"jamesfarrell.me/vidextract/internal/storage/models"
)

var (
	testDB    *sql.DB
	testDBURL string
)

// TestMain starts a pgvector container for the integration tests. Without a
// Docker provider, or under -short, those tests skip.
func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(m.Run())
	}

	os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")
	ctx := context.Background()

	container, err := startPostgres(ctx)
	if err != nil {
		log.Printf("pgvector container unavailable, integration tests will skip: %v", err)
		os.Exit(m.Run())
	}

	code := m.Run()

	if testDB != nil {
		_ = testDB.Close()
	}
	_ = container.Terminate(ctx)
	os.Exit(code)
}

func startPostgres(ctx context.Context) (c testcontainers.Container, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("docker provider: %v", r)
		}
	}()

	c, err = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "pgvector/pgvector:pg16",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "postgres",
				"POSTGRES_PASSWORD": "postgres",
				"POSTGRES_DB":       "vidextract",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(90 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		return nil, err
	}

	host, err := c.Host(ctx)
	if err != nil {
		return c, err
	}
	if host == "" || host == "null" {
		host = "localhost"
	}
	port, err := c.MappedPort(ctx, "5432")
	if err != nil {
		return c, err
	}

	testDBURL = fmt.Sprintf("postgres://postgres:postgres@%s:%s/vidextract?sslmode=disable", host, port.Port())
	testDB, err = db.NewConnection(ctx, db.Config{URL: testDBURL})
	return c, err
}

// newTestRepository returns a repository over an empty events table.
func newTestRepository(t *testing.T, emb *hashEmbedder) *EventRepository {
	t.Helper()
	if testDB == nil {
		t.Skip("postgres integration test requires Docker")
	}

	repo := NewEventRepository(testDB, emb, zerolog.Nop())
	require.NoError(t, repo.Reset(context.Background()))
	return repo
}

func countEvents(t *testing.T) int {
	t.Helper()
	var n int
	require.NoError(t, testDB.QueryRow(`SELECT count(*) FROM events`).Scan(&n))
	return n
}

func TestSaveAndGetByVideoID(t *testing.T) {
	emb := newHashEmbedder(16)
	repo := newTestRepository(t, emb)
	ctx := context.Background()

	summary := "kick-off"
	id, err := repo.Save(ctx, 4.2, "players line up at midfield", "match", "match.mp4", &summary)
	require.NoError(t, err)
	assert.Positive(t, id)
	assert.EqualValues(t, 1, emb.calls.Load())

	events, err := repo.GetByVideoID(ctx, "match")
	require.NoError(t, err)
	require.Len(t, events, 1)

	got := events[0]
	assert.Equal(t, id, got.ID)
	assert.Equal(t, 4.2, got.Timestamp)
	assert.Equal(t, "match.mp4", got.VideoFilename)
	require.NotNil(t, got.Summary)
	assert.Equal(t, "kick-off", *got.Summary)
	assert.Nil(t, got.Similarity)
}

func TestSaveBatchPartialFailure(t *testing.T) {
	repo := newTestRepository(t, newHashEmbedder(16))
	ctx := context.Background()

	report, err := repo.SaveBatch(ctx, []models.Moment{
		{StartTime: 1.0, EndTime: 2.0, Description: "a car enters the frame"},
		{StartTime: 5.0, EndTime: 6.0},
		{StartTime: 9.0, EndTime: 11.0, Description: "the car parks"},
	}, "street.mp4")
	require.NoError(t, err)

	ids := report.IDs()
	require.Len(t, ids, 2)
	assert.Equal(t, ids[0], report.Items[0].ID)
	assert.Equal(t, ids[1], report.Items[2].ID)
	assert.True(t, report.Items[1].Skipped)
	assert.Less(t, ids[0], ids[1])
}

func TestGetByFilenameOrdersByTimestamp(t *testing.T) {
	repo := newTestRepository(t, newHashEmbedder(16))
	ctx := context.Background()

	report, err := repo.SaveBatch(ctx, []models.Moment{
		{StartTime: 30.0, EndTime: 31.0, Description: "final whistle"},
		{StartTime: "2.5", EndTime: 4.0, Description: "kick off"},
		{StartTime: 12.0, EndTime: 15.0, Description: "first goal", Summary: "opening goal"},
		{StartTime: "never", EndTime: 15.0, Description: "bad time"},
	}, "game.mp4")
	require.NoError(t, err)
	assert.Equal(t, 3, report.Saved())

	_, err = repo.SaveBatch(ctx, []models.Moment{
		{StartTime: 1.0, EndTime: 2.0, Description: "other video"},
	}, "other.mp4")
	require.NoError(t, err)

	events, err := repo.GetByFilename(ctx, "game.mp4")
	require.NoError(t, err)
	require.Len(t, events, 3)

	assert.Equal(t, []float64{2.5, 12.0, 30.0}, []float64{events[0].Timestamp, events[1].Timestamp, events[2].Timestamp})
	assert.ElementsMatch(t, report.IDs(), []int64{events[0].ID, events[1].ID, events[2].ID})
	assert.Equal(t, "game", events[0].VideoID)
	require.NotNil(t, events[1].Summary)
	assert.Equal(t, "opening goal", *events[1].Summary)
}

func TestSaveBatchEmbeddingFailureLeavesNoRows(t *testing.T) {
	emb := newHashEmbedder(16)
	emb.failOn = "second moment"
	repo := newTestRepository(t, emb)

	_, err := repo.SaveBatch(context.Background(), []models.Moment{
		{StartTime: 1.0, EndTime: 2.0, Description: "first moment"},
		{StartTime: 3.0, EndTime: 4.0, Description: "second moment"},
	}, "abort.mp4")
	require.Error(t, err)
	assert.Zero(t, countEvents(t))
}

func TestSearch(t *testing.T) {
	repo := newTestRepository(t, newHashEmbedder(16))
	ctx := context.Background()

	_, err := repo.SaveBatch(ctx, []models.Moment{
		{StartTime: 1.0, EndTime: 2.0, Description: "a dog chases a red ball"},
		{StartTime: 3.0, EndTime: 4.0, Description: "rain falls on the window"},
		{StartTime: 5.0, EndTime: 6.0, Description: "crowd cheers loudly"},
	}, "mixed.mp4")
	require.NoError(t, err)

	first, err := repo.Search(ctx, "rain falls on the window", 2)
	require.NoError(t, err)
	require.Len(t, first, 2)

	assert.Equal(t, "rain falls on the window", first[0].Description)
	require.NotNil(t, first[0].Similarity)
	assert.InDelta(t, 1.0, *first[0].Similarity, 1e-6)
	for _, e := range first {
		assert.GreaterOrEqual(t, *e.Similarity, -1.0)
		assert.LessOrEqual(t, *e.Similarity, 1.0+1e-9)
	}

	second, err := repo.Search(ctx, "rain falls on the window", 2)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestResetRestartsIDs(t *testing.T) {
	repo := newTestRepository(t, newHashEmbedder(16))
	ctx := context.Background()

	first, err := repo.Save(ctx, 1, "before reset", "a", "a.mp4", nil)
	require.NoError(t, err)
	second, err := repo.Save(ctx, 2, "still before reset", "a", "a.mp4", nil)
	require.NoError(t, err)
	assert.Greater(t, second, first)

	require.NoError(t, repo.Reset(ctx))
	assert.Zero(t, countEvents(t))

	again, err := repo.Save(ctx, 1, "after reset", "a", "a.mp4", nil)
	require.NoError(t, err)
	assert.Equal(t, first, again)
}

func TestListenReceivesSavedBatches(t *testing.T) {
	repo := newTestRepository(t, newHashEmbedder(16))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan EventsSaved, 16)
	go func() {
		_ = repo.Listen(ctx, testDBURL, func(n EventsSaved) { received <- n })
	}()

	// the listener connects asynchronously, so keep saving until one arrives
	var got EventsSaved
	require.Eventually(t, func() bool {
		_, err := repo.SaveBatch(ctx, []models.Moment{
			{StartTime: 1.0, EndTime: 2.0, Description: "notified moment"},
		}, "notify.mp4")
		if err != nil {
			return false
		}

		select {
		case got = <-received:
			return true
		case <-time.After(200 * time.Millisecond):
			return false
		}
	}, 10*time.Second, 100*time.Millisecond)

	assert.Equal(t, "notify.mp4", got.VideoFilename)
	assert.Len(t, got.IDs, 1)
}
