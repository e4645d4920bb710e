package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// 播放会话
	PlaybackSessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tourguide_playback_sessions_total",
		Help: "Playback sessions by final state",
	}, []string{"state"})

	PlaybackBlockedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tourguide_playback_blocked_total",
		Help: "Playback attempts parked waiting for a user gesture",
	})

	SynthesisLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tourguide_synthesis_latency_seconds",
		Help:    "Speech synthesis round trip latency",
		Buckets: prometheus.DefBuckets,
	})

	// 语音指令
	VoiceCommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tourguide_voice_commands_total",
		Help: "Finalized utterances by resolved intent and locale",
	}, []string{"intent", "locale"})

	// HTTP API
	TTSRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tourguide_tts_requests_total",
		Help: "Text-to-speech API requests by status code",
	}, []string{"status"})

	TTSBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tourguide_tts_audio_bytes_total",
		Help: "Audio bytes returned by the text-to-speech API",
	})

	IngestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tourguide_ingest_total",
		Help: "Entity ingestion requests",
	}, []string{"type", "status"})

	DatabaseLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tourguide_database_latency_seconds",
		Help:    "Latency of database queries",
		Buckets: prometheus.DefBuckets,
	})
)
