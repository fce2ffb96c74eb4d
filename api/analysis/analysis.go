package analysisapi

import (
	"log"
	"net/http"

	"MarginSight/internal/analysis"
	"MarginSight/internal/docstore"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
)

// StartAnalysisService wires the margin analysis routes and serves
// them. Blocks; callers run it in a goroutine.
func StartAnalysisService(pool *pgxpool.Pool, port string) {
	store := NewPgStore(pool)

	docs, err := docstore.NewClientFromEnv()
	if err != nil {
		log.Fatalf("Analysis Service failed: %v", err)
	}
	runner := analysis.NewOrchestrator(store, docs)
	h := NewHandler(store, runner)

	router := mux.NewRouter()
	router.HandleFunc("/analysis/batches", h.CreateBatch).Methods("POST")
	router.HandleFunc("/analysis/batches", h.ListBatches).Methods("GET")
	router.HandleFunc("/analysis/batches/{batchId}", h.GetBatch).Methods("GET")
	router.HandleFunc("/analysis/batches/{batchId}/documents", h.SetDocuments).Methods("POST")
	router.HandleFunc("/analysis/batches/{batchId}/run", h.RunBatch).Methods("POST")
	router.HandleFunc("/analysis/batches/{batchId}/results", h.GetResults).Methods("GET")
	router.HandleFunc("/analysis/batches/{batchId}/detail/{entityType}/{code}", h.GetEntityDetail).Methods("GET")

	log.Println("Analysis Service started on :" + port)
	if err := http.ListenAndServe(":"+port, router); err != nil {
		log.Fatalf("Analysis Service failed: %v", err)
	}
}
