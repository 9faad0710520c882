package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"evade-competitive/internal/apperr"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/bmizerany/assert"
)

type fakePutter struct {
	input *s3.PutObjectInput
	body  string
}

func (f *fakePutter) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = params
	raw, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.body = string(raw)
	return &s3.PutObjectOutput{}, nil
}

func TestObjectKeySlugsPath(t *testing.T) {
	key := ObjectKey("proofs", "Speed Runs/My Best Run!.PNG")

	assert.T(t, strings.HasPrefix(key, "proofs/speed-runs/my-best-run-"), key)
	assert.T(t, strings.HasSuffix(key, ".png"), key)
}

func TestUploadFileReturnsPublicURL(t *testing.T) {
	putter := &fakePutter{}
	s := newStorage(putter, "evade", "https://cdn.example.com/")

	url, err := s.UploadFile(context.Background(), "avatars", "me.jpg", strings.NewReader("img"), "image/jpeg")
	assert.Equal(t, nil, err)

	key := aws.ToString(putter.input.Key)
	assert.Equal(t, "https://cdn.example.com/"+key, url)
	assert.Equal(t, "evade", aws.ToString(putter.input.Bucket))
	assert.Equal(t, "image/jpeg", aws.ToString(putter.input.ContentType))
	assert.Equal(t, "img", putter.body)
}

func TestUploadFileRejectsUnknownBucket(t *testing.T) {
	s := newStorage(&fakePutter{}, "evade", "https://cdn.example.com")

	_, err := s.UploadFile(context.Background(), "secrets", "x.txt", strings.NewReader(""), "text/plain")
	assert.T(t, errors.Is(err, apperr.ErrValidation))
}
