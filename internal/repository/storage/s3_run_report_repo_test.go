package storage

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/dafibh/fortuna/fortuna-engine/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	headErr error
	created []string
	putKey  string
	putBody []byte
	putType string
	putErr  error
}

func (f *fakeS3) HeadBucket(ctx context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	return &s3.HeadBucketOutput{}, f.headErr
}

func (f *fakeS3) CreateBucket(ctx context.Context, in *s3.CreateBucketInput, _ ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	f.created = append(f.created, aws.ToString(in.Bucket))
	return &s3.CreateBucketOutput{}, nil
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	f.putKey = aws.ToString(in.Key)
	f.putType = aws.ToString(in.ContentType)
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.putBody = body
	return &s3.PutObjectOutput{}, nil
}

func testSummary() *domain.RunSummary {
	s := domain.NewRunSummary(time.Date(2026, 3, 9, 23, 30, 0, 0, time.UTC))
	s.RunID = uuid.MustParse("7f1b2c3d-0000-4000-8000-000000000001")
	s.ProcessedCount = 2
	s.CreatedTransactionCount = 2
	return s
}

func TestReportKey(t *testing.T) {
	assert.Equal(t, "runs/2026/03/09/7f1b2c3d-0000-4000-8000-000000000001.json", ReportKey(testSummary()))
}

func TestReportKey_UsesUTCDate(t *testing.T) {
	s := testSummary()
	tokyo := time.FixedZone("JST", 9*3600)
	// 08:30 on the 10th in Tokyo is still the 9th in UTC
	s.StartedAt = time.Date(2026, 3, 10, 8, 30, 0, 0, tokyo)

	assert.Contains(t, ReportKey(s), "runs/2026/03/09/")
}

func TestS3RunReportRepository_Save(t *testing.T) {
	client := &fakeS3{}
	repo := newS3RunReportRepository(client, "reports")

	key, err := repo.Save(context.Background(), testSummary())

	require.NoError(t, err)
	assert.Equal(t, ReportKey(testSummary()), key)
	assert.Equal(t, key, client.putKey)
	assert.Equal(t, "application/json", client.putType)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(client.putBody, &decoded))
	assert.Equal(t, float64(2), decoded["processedCount"])
	assert.Equal(t, "7f1b2c3d-0000-4000-8000-000000000001", decoded["runId"])
}

func TestS3RunReportRepository_SaveError(t *testing.T) {
	repo := newS3RunReportRepository(&fakeS3{putErr: errors.New("access denied")}, "reports")

	_, err := repo.Save(context.Background(), testSummary())

	assert.Error(t, err)
}

func TestS3RunReportRepository_EnsureBucket(t *testing.T) {
	t.Run("existing bucket", func(t *testing.T) {
		client := &fakeS3{}
		require.NoError(t, newS3RunReportRepository(client, "reports").ensureBucket(context.Background()))
		assert.Empty(t, client.created)
	})

	t.Run("missing bucket is created", func(t *testing.T) {
		client := &fakeS3{headErr: &types.NotFound{}}
		require.NoError(t, newS3RunReportRepository(client, "reports").ensureBucket(context.Background()))
		assert.Equal(t, []string{"reports"}, client.created)
	})

	t.Run("permission error is returned", func(t *testing.T) {
		client := &fakeS3{headErr: errors.New("forbidden")}
		err := newS3RunReportRepository(client, "reports").ensureBucket(context.Background())
		assert.Error(t, err)
		assert.Empty(t, client.created)
	})
}

func TestNoOpRunReportRepository(t *testing.T) {
	key, err := NoOpRunReportRepository{}.Save(context.Background(), testSummary())
	assert.NoError(t, err)
	assert.Empty(t, key)
}
