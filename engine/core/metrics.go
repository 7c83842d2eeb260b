package core

import "time"

const AVG_COUNT uint8 = 30

// Metrics keeps a rolling frame time average and a frames-per-second counter.
// One instance per engine; it is not safe for concurrent use.
type Metrics struct {
	frameAVGCounter    uint8
	msTimes            [AVG_COUNT]float64
	msAvg              float64
	frames             int32
	accumulatedFrameMS float64
	fps                float64
	totalFrames        uint64
	barriers           uint64
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

// Update records one frame that took frameElapsed and issued barrierCount
// transitions.
func (m *Metrics) Update(frameElapsed time.Duration, barrierCount int) {
	// Calculate frame ms average
	frameMS := float64(frameElapsed) / float64(time.Millisecond)
	m.msTimes[m.frameAVGCounter] = frameMS
	if m.frameAVGCounter == AVG_COUNT-1 {
		m.msAvg = 0
		for i := uint8(0); i < AVG_COUNT; i++ {
			m.msAvg += m.msTimes[i]
		}
		m.msAvg /= float64(AVG_COUNT)
	}
	m.frameAVGCounter++
	m.frameAVGCounter %= AVG_COUNT

	// Calculate Frames per second.
	m.accumulatedFrameMS += frameMS
	if m.accumulatedFrameMS > 1000 {
		m.fps = float64(m.frames)
		m.accumulatedFrameMS -= 1000
		m.frames = 0
	}

	// Count all Frames.
	m.frames++
	m.totalFrames++
	m.barriers += uint64(barrierCount)
}

func (m *Metrics) FPS() float64 {
	return m.fps
}

func (m *Metrics) FrameTime() float64 {
	return m.msAvg
}

func (m *Metrics) Frame() (float64, float64) {
	return m.fps, m.msAvg
}

// TotalFrames returns the number of frames recorded since creation.
func (m *Metrics) TotalFrames() uint64 {
	return m.totalFrames
}

// BarriersPerFrame returns the mean number of barriers issued per frame.
func (m *Metrics) BarriersPerFrame() float64 {
	if m.totalFrames == 0 {
		return 0
	}
	return float64(m.barriers) / float64(m.totalFrames)
}
