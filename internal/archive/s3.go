package archive

import (
	"context"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"

	"github.com/NVIDIA/gnssfetch/internal/cmn"
)

// S3Archive is the s3://bucket/prefix variant, grounded on the session/
// client construction and error mapping in ais/cloud/aws.go, generalized
// from bucket-object listing to product-file fetch/store/exists.
type S3Archive struct {
	*Base
	Bucket string
	Prefix string
	Region string

	sess *session.Session
	svc  *s3.S3
}

func NewS3Archive(base *Base, bucket, prefix, region string) *S3Archive {
	return &S3Archive{Base: base, Bucket: bucket, Prefix: strings.Trim(prefix, "/"), Region: region}
}

func (a *S3Archive) Connect(_ context.Context) error {
	sess, err := session.NewSessionWithOptions(session.Options{SharedConfigState: session.SharedConfigEnable})
	if err != nil {
		return cmn.NewRetryableError(a.ArchiveName, err, time.Now().Add(time.Minute))
	}
	cfg := &aws.Config{}
	if a.Region != "" {
		cfg.Region = aws.String(a.Region)
	}
	a.sess = sess
	a.svc = s3.New(sess, cfg)
	a.setConnected(true)
	return nil
}

func (a *S3Archive) Disconnect() error {
	a.svc = nil
	a.setConnected(false)
	return nil
}

func (a *S3Archive) key(path, filename string) string {
	parts := make([]string, 0, 3)
	if a.Prefix != "" {
		parts = append(parts, a.Prefix)
	}
	if path != "" {
		parts = append(parts, strings.Trim(path, "/"))
	}
	if filename != "" {
		parts = append(parts, filename)
	}
	return strings.Join(parts, "/")
}

func (a *S3Archive) ensureConnected(ctx context.Context) error {
	if a.isConnected() {
		return nil
	}
	return a.Connect(ctx)
}

func (a *S3Archive) List(ctx context.Context, path string) ([]string, error) {
	if err := a.ensureConnected(ctx); err != nil {
		return nil, err
	}
	prefix := a.key(path, "") + "/"
	var names []string
	err := a.svc.ListObjectsPagesWithContext(ctx, &s3.ListObjectsInput{
		Bucket: aws.String(a.Bucket),
		Prefix: aws.String(prefix),
	}, func(page *s3.ListObjectsOutput, _ bool) bool {
		for _, obj := range page.Contents {
			names = append(names, strings.TrimPrefix(*obj.Key, prefix))
		}
		return true
	})
	if err != nil {
		return nil, a.mapErr(err)
	}
	sort.Strings(names)
	return names, nil
}

func (a *S3Archive) Fetch(ctx context.Context, path, filename string) (string, error) {
	if err := a.ensureConnected(ctx); err != nil {
		return "", err
	}
	resolved, err := FetchResolved(a.Base, func(p string) ([]string, error) { return a.List(ctx, p) }, path, filename)
	if err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp("", "gnssfetch-s3-*.tmp")
	if err != nil {
		return "", err
	}
	downloader := s3manager.NewDownloaderWithClient(a.svc)
	_, err = downloader.DownloadWithContext(ctx, tmp, &s3.GetObjectInput{
		Bucket: aws.String(a.Bucket),
		Key:    aws.String(a.key(path, resolved)),
	})
	tmp.Close()
	if err != nil {
		os.Remove(tmp.Name())
		return "", a.mapErr(err)
	}

	if err := ReconnectIfBudgetExceeded(ctx, a.Base, a.Disconnect, a.Connect); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

func (a *S3Archive) Store(ctx context.Context, localFile, path, filename string) error {
	if a.ReadonlyArchive {
		return cmn.NewConfigError(a.ArchiveName, "archive is read-only")
	}
	if err := a.ensureConnected(ctx); err != nil {
		return err
	}
	f, err := os.Open(localFile)
	if err != nil {
		return err
	}
	defer f.Close()
	uploader := s3manager.NewUploaderWithClient(a.svc)
	_, err = uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket: aws.String(a.Bucket),
		Key:    aws.String(a.key(path, filename)),
		Body:   f,
	})
	if err != nil {
		return a.mapErr(err)
	}
	return nil
}

func (a *S3Archive) Exists(ctx context.Context, path, filename string) (bool, error) {
	if err := a.ensureConnected(ctx); err != nil {
		return false, err
	}
	_, err := a.svc.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(a.Bucket),
		Key:    aws.String(a.key(path, filename)),
	})
	if err == nil {
		return true, nil
	}
	if aerr, ok := err.(awserr.Error); ok && aerr.Code() == s3.ErrCodeNoSuchKey {
		return false, nil
	}
	if aerr, ok := err.(awserr.RequestFailure); ok && aerr.StatusCode() == 404 {
		return false, nil
	}
	return false, a.mapErr(err)
}

func (a *S3Archive) mapErr(err error) error {
	if reqErr, ok := err.(awserr.RequestFailure); ok {
		if reqErr.StatusCode() == 404 {
			return cmn.NewNotFoundError(a.Bucket, a.Prefix)
		}
		return cmn.NewRetryableError(a.ArchiveName, err, time.Now().Add(time.Minute))
	}
	return cmn.NewRetryableError(a.ArchiveName, err, time.Now().Add(time.Minute))
}

var _ io.WriterAt = (*os.File)(nil) // documents that *os.File satisfies s3manager's io.WriterAt requirement
