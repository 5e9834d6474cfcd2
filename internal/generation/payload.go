package generation

import "math/rand"

// MaxSeed bounds the random seed: seeds are drawn from [0, MaxSeed).
const MaxSeed = 858993460

const TaskTypeTextImage = "TEXT_IMAGE"

// Payload is the Nova Canvas text-to-image request body.
type Payload struct {
	TaskType              string                `json:"taskType"`
	TextToImageParams     TextToImageParams     `json:"textToImageParams"`
	ImageGenerationConfig ImageGenerationConfig `json:"imageGenerationConfig"`
}

type TextToImageParams struct {
	Text string `json:"text"`
}

type ImageGenerationConfig struct {
	Seed           int64  `json:"seed"`
	Quality        string `json:"quality"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
	NumberOfImages int    `json:"numberOfImages"`
}

func NewPayload(prompt string, seed int64) Payload {
	return Payload{
		TaskType:          TaskTypeTextImage,
		TextToImageParams: TextToImageParams{Text: prompt},
		ImageGenerationConfig: ImageGenerationConfig{
			Seed:           seed,
			Quality:        "standard",
			Width:          1024,
			Height:         1024,
			NumberOfImages: 1,
		},
	}
}

func RandomSeed() int64 {
	return rand.Int63n(MaxSeed)
}
