package activities

import "go.temporal.io/sdk/worker"

func Register(w worker.Worker, a *Activities) {
	w.RegisterActivity(a.FetchPapersActivity)
	w.RegisterActivity(a.GetOrCreateTopicActivity)
	w.RegisterActivity(a.UpsertPapersActivity)
	w.RegisterActivity(a.EmbedPassagesActivity)
	w.RegisterActivity(a.AttachEmbeddingsActivity)
	w.RegisterActivity(a.WriteIngestManifestActivity)
}
