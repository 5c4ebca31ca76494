package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/kotae/data/kotae.db"
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Model.BaseURL == "" {
		cfg.Model.BaseURL = "http://localhost:11434/v1"
	}
	if cfg.Model.EmbeddingModel == "" {
		cfg.Model.EmbeddingModel = "nomic-embed-text"
	}
	if cfg.Model.ChatModel == "" {
		cfg.Model.ChatModel = "llama3.1"
	}
	if cfg.Model.Dimensions == 0 {
		cfg.Model.Dimensions = 768
	}
	if cfg.Model.TimeoutSeconds == 0 {
		cfg.Model.TimeoutSeconds = 30
	}
	if cfg.Model.CacheTTLDays == 0 {
		cfg.Model.CacheTTLDays = 30
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = 3
	}
	if cfg.Retry.BaseBackoffMs == 0 {
		cfg.Retry.BaseBackoffMs = 500
	}
	if cfg.Chunking.ChunkSize == 0 {
		cfg.Chunking.ChunkSize = 1000
	}
	if cfg.Chunking.ChunkOverlap == 0 {
		cfg.Chunking.ChunkOverlap = 200
	}
	if cfg.Retrieval.IndexName == "" {
		cfg.Retrieval.IndexName = "chunk_idx"
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 5
	}
	if cfg.Retrieval.MinCitations == 0 {
		cfg.Retrieval.MinCitations = 2
	}
	if cfg.Ingest.MaxFileSizeMB == 0 {
		cfg.Ingest.MaxFileSizeMB = 50
	}
	if cfg.Ingest.LockWaitSeconds == 0 {
		cfg.Ingest.LockWaitSeconds = 10
	}
	if cfg.Ingest.LockLeaseSeconds == 0 {
		cfg.Ingest.LockLeaseSeconds = 30
	}
	if cfg.Ingest.VectorizeBatchSize == 0 {
		cfg.Ingest.VectorizeBatchSize = 10
	}
	if cfg.Behavior.QueueSize == 0 {
		cfg.Behavior.QueueSize = 256
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".txt", ".md", ".pdf", ".docx"}
	}
}
