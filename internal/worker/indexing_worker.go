package worker

import (
	"github.com/symptomcheck/symptom-service/internal/service"
)

// StartIndexingWorker registers knowledge base indexing handlers.
func StartIndexingWorker(indexingService *service.IndexingService) {
	if indexingService == nil {
		return
	}
	indexingService.RegisterHandlers()
}
