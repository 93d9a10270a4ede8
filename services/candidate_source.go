package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"matchroom_server/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// MaxRoomCandidates caps how many catalog items a room votes on.
const MaxRoomCandidates = 20

// CandidateSource is the content discovery collaborator used at room creation.
type CandidateSource interface {
	FetchCandidates(ctx context.Context, kind string, tags []string) ([]models.Candidate, error)
}

// filterCandidates keeps entries carrying every requested tag, in catalog order.
func filterCandidates(entries []models.Candidate, tags []string) []models.Candidate {
	var out []models.Candidate
	for _, c := range entries {
		if hasAllTags(c.Tags, tags) {
			out = append(out, c)
			if len(out) == MaxRoomCandidates {
				break
			}
		}
	}
	return out
}

func hasAllTags(have, want []string) bool {
	for _, w := range want {
		found := false
		for _, h := range have {
			if strings.EqualFold(h, w) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// StaticCandidateSource serves candidates from an in-memory catalog keyed by kind.
type StaticCandidateSource struct {
	Catalog map[string][]models.Candidate
}

func (s *StaticCandidateSource) FetchCandidates(_ context.Context, kind string, tags []string) ([]models.Candidate, error) {
	return filterCandidates(s.Catalog[kind], tags), nil
}

// S3GetObjectAPI is the S3 call the catalog source depends on.
type S3GetObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3CatalogSource reads "{Prefix}{kind}.json" (a JSON array of candidates)
// from Bucket and filters it by tag.
type S3CatalogSource struct {
	Client S3GetObjectAPI
	Bucket string
	Prefix string
}

func (s *S3CatalogSource) FetchCandidates(ctx context.Context, kind string, tags []string) ([]models.Candidate, error) {
	key := s.Prefix + kind + ".json"
	output, err := s.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch catalog '%s': %w", key, err)
	}
	defer output.Body.Close()

	var entries []models.Candidate
	if err := json.NewDecoder(output.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("failed to decode catalog '%s': %w", key, err)
	}
	return filterCandidates(entries, tags), nil
}
