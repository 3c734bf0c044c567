package completion

// ToWireChunk stamps the request-constant fields around delta. An empty
// finishReason encodes as null.
func ToWireChunk(requestID string, createdAt int64, model string, delta Delta, finishReason string) Chunk {
	var reason *string
	if finishReason != "" {
		r := finishReason
		reason = &r
	}
	return Chunk{
		ID:      requestID,
		Object:  chunkObject,
		Created: createdAt,
		Model:   model,
		Choices: []ChunkChoice{{
			Index:        0,
			Delta:        delta,
			FinishReason: reason,
		}},
	}
}
