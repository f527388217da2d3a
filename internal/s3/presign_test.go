package s3

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

func newClient(t *testing.T) *minio.Client {
	t.Helper()
	mc, err := minio.New("localhost:9000", &minio.Options{Creds: credentials.NewStaticV4("k", "s", ""), Secure: false, Region: "us-east-1"})
	if err != nil {
		t.Fatal(err)
	}
	return mc
}

func TestPresignGetTTL(t *testing.T) {
	svc := Service{Client: newClient(t), Bucket: "bucket", MaxTTL: time.Minute}
	if _, err := svc.PresignGet(context.Background(), "k", "file.txt", 0); err == nil {
		t.Fatal("expected error for ttl <=0")
	}
	if _, err := svc.PresignGet(context.Background(), "k", "file.txt", time.Minute*2); err == nil {
		t.Fatal("expected error for ttl > MaxTTL")
	}
}

func TestPresignGetDisposition(t *testing.T) {
	svc := Service{Client: newClient(t), Bucket: "bucket", MaxTTL: time.Minute}
	u, err := svc.PresignGet(context.Background(), "report.pdf-key", "report.pdf", time.Second)
	if err != nil {
		t.Fatal(err)
	}
	uu, err := url.Parse(u)
	if err != nil {
		t.Fatal(err)
	}
	if cd := uu.Query().Get("response-content-disposition"); cd != "attachment; filename=\"report.pdf\"" {
		t.Fatalf("unexpected content-disposition %s", cd)
	}
}
