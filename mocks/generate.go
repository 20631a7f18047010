package mocks

//go:generate mockgen -destination=./mock_provider.go -package=mocks github.com/rxtech-lab/argo-dca/pkg/marketdata/provider Provider
//go:generate mockgen -destination=./mock_store.go -package=mocks github.com/rxtech-lab/argo-dca/internal/persistence Store
//go:generate mockgen -destination=./mock_event_sink.go -package=mocks github.com/rxtech-lab/argo-dca/internal/strategy EventSink
//go:generate mockgen -destination=./mock_indicator.go -package=mocks github.com/rxtech-lab/argo-dca/internal/indicator Indicator
