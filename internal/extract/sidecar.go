package extract

import (
	"context"
	"encoding/json"
	"fmt"
)

// SidecarSuffix is appended to a content location to name its metadata file.
const SidecarSuffix = ".metadata.json"

type Sidecar struct {
	ContentLocation string         `json:"content_location"`
	Metadata        map[string]any `json:"metadata"`
}

func SidecarLocation(contentLocation string) string {
	return contentLocation + SidecarSuffix
}

type SidecarStore struct {
	storage *Storage
}

func NewSidecarStore(storage *Storage) *SidecarStore {
	return &SidecarStore{storage: storage}
}

// Write stores metadata next to the content and returns the sidecar location.
func (s *SidecarStore) Write(ctx context.Context, contentLocation string, metadata map[string]any) (string, error) {
	loc := SidecarLocation(contentLocation)
	data, err := json.MarshalIndent(Sidecar{ContentLocation: contentLocation, Metadata: metadata}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode sidecar: %w", err)
	}
	if err := s.storage.WriteFile(ctx, loc, data); err != nil {
		return "", err
	}
	return loc, nil
}

func (s *SidecarStore) Read(ctx context.Context, sidecarLocation string) (*Sidecar, error) {
	data, err := s.storage.ReadFile(ctx, sidecarLocation)
	if err != nil {
		return nil, err
	}
	var sc Sidecar
	if err := json.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("decode sidecar %s: %w", sidecarLocation, err)
	}
	return &sc, nil
}
