package logger

import (
	"context"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"                              //cloudwatch
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types" //cloudwatch
)

type flowStat struct {
	records int64
	bytes   int64
}

var (
	errorsExtract     int64
	errorsProcess     int64
	warnsExtract      int64
	warnsProcess      int64
	providerCalls     int64
	providerThrottles int64
	snapshotWrites    int64
	recordsNormalized int64
	recordsMerged     int64
	s3Writes          int64
	flows             sync.Map // map[string]*flowStat
)

// extract-side components touch providers and raw snapshots; everything else
// belongs to the processing side (normalize, merge, dataset, warehouse).
func isExtractComponent(component string) bool {
	for _, marker := range []string{"alphavantage", "yahoo", "extract", "snapshot"} {
		if strings.Contains(component, marker) {
			return true
		}
	}
	return false
}

func recordWarn(component string) {
	if isExtractComponent(component) {
		atomic.AddInt64(&warnsExtract, 1)
	} else {
		atomic.AddInt64(&warnsProcess, 1)
	}
}

func recordError(component string) {
	if isExtractComponent(component) {
		atomic.AddInt64(&errorsExtract, 1)
	} else {
		atomic.AddInt64(&errorsProcess, 1)
	}
}

func IncrementProviderCall(size int) {
	atomic.AddInt64(&providerCalls, 1)
	recordFlow("provider_fetch", 1, size)
}

func IncrementProviderThrottle() {
	atomic.AddInt64(&providerThrottles, 1)
}

func IncrementSnapshotWrite(size int) {
	atomic.AddInt64(&snapshotWrites, 1)
	recordFlow("snapshot_write", 1, size)
}

func AddRecordsNormalized(n int) {
	atomic.AddInt64(&recordsNormalized, int64(n))
}

func AddRecordsMerged(n int) {
	atomic.AddInt64(&recordsMerged, int64(n))
}

func IncrementS3Write(size int64) {
	atomic.AddInt64(&s3Writes, 1)
	recordFlow("s3_write", 1, int(size))
}

// RecordFlowMessage tracks one message moving through a named flow.
func RecordFlowMessage(name string, size int) {
	recordFlow(name, 1, size)
}

func recordFlow(name string, records, size int) {
	v, _ := flows.LoadOrStore(name, &flowStat{})
	fs := v.(*flowStat)
	atomic.AddInt64(&fs.records, int64(records))
	atomic.AddInt64(&fs.bytes, int64(size))
}

func startReport(ctx context.Context, log *Log, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-ticker.C:
				logReport(ctx, log)
			}
		}
	}()
}

// StartReport begins periodic logging of runtime and flow statistics.
// It exposes the internal startReport function for use by other packages.
func StartReport(ctx context.Context, log *Log, interval time.Duration) {
	startReport(ctx, log, interval)
}

func logReport(ctx context.Context, log *Log) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	heapMB := float64(ms.HeapAlloc) / 1024 / 1024
	sysMB := float64(ms.Sys) / 1024 / 1024

	flowData := map[string]map[string]int64{}
	flows.Range(func(k, v any) bool {
		name := k.(string)
		fs := v.(*flowStat)
		flowData[name] = map[string]int64{
			"records": atomic.LoadInt64(&fs.records),
			"bytes":   atomic.LoadInt64(&fs.bytes),
		}
		return true
	})

	fields := Fields{
		"errors_extract":     atomic.LoadInt64(&errorsExtract),
		"errors_process":     atomic.LoadInt64(&errorsProcess),
		"warns_extract":      atomic.LoadInt64(&warnsExtract),
		"warns_process":      atomic.LoadInt64(&warnsProcess),
		"provider_calls":     atomic.LoadInt64(&providerCalls),
		"provider_throttles": atomic.LoadInt64(&providerThrottles),
		"snapshot_writes":    atomic.LoadInt64(&snapshotWrites),
		"records_normalized": atomic.LoadInt64(&recordsNormalized),
		"records_merged":     atomic.LoadInt64(&recordsMerged),
		"s3_writes":          atomic.LoadInt64(&s3Writes),
		"goroutines":         runtime.NumGoroutine(),
		"heap_mb":            heapMB,
		"sys_mb":             sysMB,
		"flows":              flowData,
	}

	log.WithComponent("report").WithFields(fields).Info("runtime report")

	var data []cwtypes.MetricDatum
	data = append(data,
		cwtypes.MetricDatum{MetricName: aws.String("HeapMB"), Unit: cwtypes.StandardUnitMegabytes, Value: aws.Float64(heapMB)},
		cwtypes.MetricDatum{MetricName: aws.String("SysMB"), Unit: cwtypes.StandardUnitMegabytes, Value: aws.Float64(sysMB)},
		cwtypes.MetricDatum{MetricName: aws.String("Goroutines"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(runtime.NumGoroutine()))},
		cwtypes.MetricDatum{MetricName: aws.String("ErrorsExtract"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["errors_extract"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("ErrorsProcess"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["errors_process"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("WarnsExtract"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["warns_extract"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("WarnsProcess"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["warns_process"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("ProviderCalls"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["provider_calls"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("ProviderThrottles"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["provider_throttles"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("SnapshotWrites"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["snapshot_writes"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("RecordsNormalized"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["records_normalized"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("RecordsMerged"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["records_merged"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("S3Writes"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["s3_writes"].(int64)))},
	)

	for name, stats := range flowData {
		data = append(data,
			cwtypes.MetricDatum{
				MetricName: aws.String("FlowRecords"),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{{Name: aws.String("Flow"), Value: aws.String(name)}},
				Value:      aws.Float64(float64(stats["records"])),
			},
			cwtypes.MetricDatum{
				MetricName: aws.String("FlowBytes"),
				Unit:       cwtypes.StandardUnitBytes,
				Dimensions: []cwtypes.Dimension{{Name: aws.String("Flow"), Value: aws.String(name)}},
				Value:      aws.Float64(float64(stats["bytes"])),
			},
		)
	}

	publishMetrics(ctx, data)
}
