package core

const avgCount = 30

// FrameMetrics keeps a rolling average of frame times and a frames-per-second
// counter. One instance lives in the frame context; it is written by the
// coordinator thread only.
type FrameMetrics struct {
	frameAvgCounter    uint8
	msTimes            [avgCount]float64
	msAvg              float64
	frames             int32
	accumulatedFrameMS float64
	fps                float64
}

func NewFrameMetrics() *FrameMetrics {
	return &FrameMetrics{}
}

// Update records one frame's elapsed time in seconds.
func (m *FrameMetrics) Update(frameElapsedTime float64) {
	// Calculate frame ms average
	frameMS := frameElapsedTime * 1000.0
	m.msTimes[m.frameAvgCounter] = frameMS
	if m.frameAvgCounter == avgCount-1 {
		sum := 0.0
		for i := 0; i < avgCount; i++ {
			sum += m.msTimes[i]
		}
		m.msAvg = sum / float64(avgCount)
	}
	m.frameAvgCounter++
	m.frameAvgCounter %= avgCount

	// Calculate frames per second.
	m.accumulatedFrameMS += frameMS
	if m.accumulatedFrameMS > 1000 {
		m.fps = float64(m.frames)
		m.accumulatedFrameMS -= 1000
		m.frames = 0
	}

	m.frames++
}

func (m *FrameMetrics) FPS() float64 {
	return m.fps
}

func (m *FrameMetrics) FrameTime() float64 {
	return m.msAvg
}

func (m *FrameMetrics) Frame() (float64, float64) {
	return m.fps, m.msAvg
}
