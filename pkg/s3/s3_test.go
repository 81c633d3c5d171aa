package s3

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestObjectURL(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		region   string
		secure   bool
		want     string
	}{
		{
			name: "aws default region",
			want: "https://pets.s3.us-east-1.amazonaws.com/post_images/a.jpg",
		},
		{
			name:   "aws explicit region",
			region: "eu-west-1",
			want:   "https://pets.s3.eu-west-1.amazonaws.com/post_images/a.jpg",
		},
		{
			name:     "minio without tls",
			endpoint: "http://localhost:9000",
			want:     "http://localhost:9000/pets/post_images/a.jpg",
		},
		{
			name:     "minio with tls",
			endpoint: "https://minio.internal",
			secure:   true,
			want:     "https://minio.internal/pets/post_images/a.jpg",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ObjectURL(tt.endpoint, tt.region, "pets", "post_images/a.jpg", tt.secure)
			assert.Equal(t, tt.want, got)
		})
	}
}
