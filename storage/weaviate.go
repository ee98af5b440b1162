package storage

import (
	"context"
	"net/http"

	"ewintr.nl/conceptube/config"
	"ewintr.nl/conceptube/model"
	"github.com/weaviate/weaviate-go-client/v4/weaviate"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/auth"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/fault"
	"github.com/weaviate/weaviate/entities/models"
)

const (
	className = "Video"
)

// Weaviate keeps a vectorized copy of the concept map of each video, the
// source for related video lookups.
type Weaviate struct {
	client *weaviate.Client
}

func NewWeaviate(cfg config.WeaviateConfig, openaiApiKey string) (*Weaviate, error) {
	wcfg := weaviate.Config{
		Scheme: cfg.Scheme,
		Host:   cfg.Host,
		Headers: map[string]string{
			"X-OpenAI-Api-Key": openaiApiKey,
		},
	}
	if cfg.APIKey != "" {
		wcfg.AuthConfig = auth.ApiKey{Value: cfg.APIKey}
	}

	c, err := weaviate.NewClient(wcfg)
	if err != nil {
		return nil, err
	}

	return &Weaviate{client: c}, nil
}

// EnsureSchema creates the class when it does not exist yet.
func (w *Weaviate) EnsureSchema(ctx context.Context) error {
	_, err := w.client.Schema().ClassGetter().WithClassName(className).Do(ctx)
	if err == nil {
		return nil
	}
	if status, ok := err.(*fault.WeaviateClientError); !ok || status.StatusCode != http.StatusNotFound {
		return err
	}

	classObj := &models.Class{
		Class:      className,
		Vectorizer: "text2vec-openai",
		ModuleConfig: map[string]any{
			"text2vec-openai": map[string]any{
				"model":        "ada",
				"modelVersion": "002",
				"type":         "text",
			},
		},
	}

	return w.client.Schema().ClassCreator().WithClass(classObj).Do(ctx)
}

func (w *Weaviate) Save(ctx context.Context, video *model.Video) error {
	vID := video.ID.String()
	props := map[string]any{
		"videoId":  string(video.YoutubeID),
		"title":    video.Title,
		"aiTitle":  video.ConceptTitle,
		"summary":  video.ConceptSummary,
		"concepts": video.MappedConcepts,
	}

	// check it already exists
	exists, err := w.client.Data().
		Checker().
		WithID(vID).
		WithClassName(className).
		Do(ctx)
	if err != nil {
		return err
	}

	if exists {
		return w.client.Data().
			Updater().
			WithID(vID).
			WithClassName(className).
			WithProperties(props).
			Do(ctx)
	}

	_, err = w.client.Data().
		Creator().
		WithClassName(className).
		WithID(vID).
		WithProperties(props).
		Do(ctx)

	return err
}

func (w *Weaviate) Delete(ctx context.Context, video *model.Video) error {
	err := w.client.Data().
		Deleter().
		WithClassName(className).
		WithID(video.ID.String()).
		Do(ctx)
	// Weaviate answers 404 for objects that were never indexed
	if status, ok := err.(*fault.WeaviateClientError); ok && status.StatusCode == http.StatusNotFound {
		return nil
	}

	return err
}
