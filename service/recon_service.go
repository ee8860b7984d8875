package services

import (
	"fmt"
	"log"
	"os"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/elastic/go-elasticsearch/v8"
	"gorm.io/gorm"
)

// ReconService owns the reconciliation engine plus its infrastructure
// clients: the relational store, the S3 bucket where raw ledger extracts
// are archived, and the optional Elasticsearch index behind the dashboard
// search.
type ReconService struct {
	s3Client *s3.S3
	esClient *elasticsearch.Client
	db       *gorm.DB
}

// NewReconService initializes the service from environment configuration.
func NewReconService(db *gorm.DB) (*ReconService, error) {
	region := os.Getenv("ARCHIVE_S3_REGION")
	endpoint := os.Getenv("ARCHIVE_S3_ENDPOINT")
	accessKey := os.Getenv("ARCHIVE_S3_ACCESS_KEY")
	secretKey := os.Getenv("ARCHIVE_S3_SECRET_KEY")

	if region == "" || endpoint == "" || accessKey == "" || secretKey == "" {
		return nil, fmt.Errorf("missing required S3 archive configuration environment variables")
	}

	sess, err := session.NewSession(&aws.Config{
		Region:           aws.String(region),
		Endpoint:         aws.String(endpoint),
		Credentials:      credentials.NewStaticCredentials(accessKey, secretKey, ""),
		S3ForcePathStyle: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	esURL := os.Getenv("ELASTICSEARCH_URL")
	var esClient *elasticsearch.Client
	if esURL != "" {
		esClient, err = elasticsearch.NewClient(elasticsearch.Config{
			Addresses: []string{esURL},
		})
		if err != nil {
			log.Printf("Warning: Failed to create Elasticsearch client: %v", err)
			esClient = nil
		}
	}

	return &ReconService{s3Client: s3.New(sess), esClient: esClient, db: db}, nil
}
