package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fiapx_pose_jobs_processed_total",
		Help: "Total number of pose extraction jobs processed, by status",
	}, []string{"status"})

	JobProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fiapx_pose_job_processing_duration_seconds",
		Help:    "Duration of pose extraction stages",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"stage"})

	PipelineRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fiapx_pose_pipeline_runs_total",
		Help: "Total number of pipeline runs, by terminal result",
	}, []string{"result"})

	FramesDecodedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fiapx_pose_frames_decoded_total",
		Help: "Total number of frames decoded across all runs",
	})

	PoseEstimationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fiapx_pose_estimations_total",
		Help: "Per-frame pose estimation outcomes",
	}, []string{"outcome"})

	ActiveWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fiapx_pose_active_workers",
		Help: "Number of currently active workers processing jobs",
	})

	RetryTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fiapx_pose_retry_total",
		Help: "Total number of retries",
	}, []string{"attempt"})

	UploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fiapx_pose_http_uploads_total",
		Help: "Total number of HTTP uploads, by response code",
	}, []string{"code"})
)
