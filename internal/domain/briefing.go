package domain

// BriefingScript is the composed spoken-word narrative for one subscriber run.
// SourceMessageIDs preserves item order (critical first, then action, each
// newest to oldest) so the caller can mark exactly those messages read.
type BriefingScript struct {
	Text             string
	SourceMessageIDs []string
}

// AudioArtifact references synthesized briefing audio handed to delivery.
type AudioArtifact struct {
	Name string
	Data []byte
}
