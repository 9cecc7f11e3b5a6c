// Package blobstore сохраняет загруженные документы специалистов в S3-совместимом хранилище.
package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/magabrotheeeer/profinder/internal/config"
	"github.com/magabrotheeeer/profinder/internal/lib/apperr"
)

// Поля multipart-формы, принимаемые как документы.
const (
	FieldAadharCard   = "aadharCard"
	FieldVoterID      = "voterId"
	FieldProfilePhoto = "profilePhoto"
)

// DefaultMaxSize предельный размер одного файла.
const DefaultMaxSize int64 = 10 << 20

var allowed = []string{"image/jpeg", "image/png", "image/gif", "application/pdf"}

// Uploader часть S3 клиента, нужная для загрузки.
type Uploader interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Store загружает документы и возвращает их адреса.
type Store struct {
	client  Uploader
	bucket  string
	baseURL string
	maxSize int64
}

// New создаёт хранилище по настройкам S3. Пустой endpoint означает AWS.
func New(ctx context.Context, cfg config.S3) (*Store, error) {
	const op = "blobstore.New"
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3AccessKey,
			cfg.S3SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to load AWS config: %w", op, err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})

	base := fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.S3Bucket, cfg.S3Region)
	if cfg.S3Endpoint != "" {
		base = strings.TrimRight(cfg.S3Endpoint, "/") + "/" + cfg.S3Bucket
	}
	return NewWithClient(client, cfg.S3Bucket, base, cfg.MaxUpload), nil
}

// NewWithClient создаёт хранилище поверх готового клиента.
func NewWithClient(client Uploader, bucket, baseURL string, maxSize int64) *Store {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Store{
		client:  client,
		bucket:  bucket,
		baseURL: strings.TrimRight(baseURL, "/"),
		maxSize: maxSize,
	}
}

// IsDocumentField сообщает, принимается ли поле формы как документ.
func IsDocumentField(name string) bool {
	switch name {
	case FieldAadharCard, FieldVoterID, FieldProfilePhoto:
		return true
	}
	return false
}

// MaxSize возвращает предельный размер файла.
func (s *Store) MaxSize() int64 {
	return s.maxSize
}

// Put проверяет тип и размер файла по содержимому и загружает его под ключом
// <field>/<uuid><ext>. Недопустимый файл даёт apperr.ErrValidation.
func (s *Store) Put(ctx context.Context, field string, r io.Reader) (string, error) {
	const op = "blobstore.Put"
	if !IsDocumentField(field) {
		return "", apperr.New(apperr.KindValidation, op, "unexpected file field "+field)
	}

	data, err := io.ReadAll(io.LimitReader(r, s.maxSize+1))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if len(data) == 0 {
		return "", apperr.New(apperr.KindValidation, op, field+" is empty")
	}
	if int64(len(data)) > s.maxSize {
		return "", apperr.New(apperr.KindValidation, op,
			fmt.Sprintf("%s exceeds %d MB", field, s.maxSize>>20))
	}

	mtype := mimetype.Detect(data)
	if !mimetype.EqualsAny(mtype.String(), allowed...) {
		return "", apperr.New(apperr.KindValidation, op,
			"only JPEG, PNG, GIF and PDF files are allowed, got "+mtype.String())
	}

	key := field + "/" + uuid.NewString() + mtype.Extension()
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(mtype.String()),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", fmt.Errorf("%s: failed to upload %s: %w", op, field, err)
	}
	return s.baseURL + "/" + key, nil
}
