package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"
)

type initializeResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	} `json:"data"`
}

type verifyResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		ID        int64      `json:"id"`
		Status    string     `json:"status"`
		Reference string     `json:"reference"`
		Amount    int64      `json:"amount"`
		Fees      int64      `json:"fees"`
		Currency  string     `json:"currency"`
		Channel   string     `json:"channel"`
		PaidAt    *time.Time `json:"paid_at"`
	} `json:"data"`
}

func main() {
	port := ":8081"

	http.HandleFunc("/transaction/initialize", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var body struct {
			Reference string `json:"reference"`
		}
		json.NewDecoder(r.Body).Decode(&body)

		// Simulate slight processing delay
		time.Sleep(1 * time.Millisecond)

		resp := initializeResponse{
			Status:  true,
			Message: "Authorization URL created",
		}
		resp.Data.AuthorizationURL = "https://checkout.paystack.com/mock_auth_url"
		resp.Data.AccessCode = "mock_access_code"
		resp.Data.Reference = body.Reference
		if resp.Data.Reference == "" {
			resp.Data.Reference = fmt.Sprintf("mock_ref_%d", time.Now().UnixNano())
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(resp)

		log.Printf("Processed mock payment initialization: %s", resp.Data.Reference)
	})

	http.HandleFunc("/transaction/verify/", func(w http.ResponseWriter, r *http.Request) {
		reference := strings.TrimPrefix(r.URL.Path, "/transaction/verify/")

		paidAt := time.Now()
		resp := verifyResponse{
			Status:  true,
			Message: "Verification successful",
		}
		resp.Data.ID = time.Now().UnixNano()
		resp.Data.Status = "success"
		resp.Data.Reference = reference
		resp.Data.Amount = 10000
		resp.Data.Fees = 150
		resp.Data.Currency = "NGN"
		resp.Data.Channel = "card"
		resp.Data.PaidAt = &paidAt

		// References ending in _fail simulate a declined charge
		if strings.HasSuffix(reference, "_fail") {
			resp.Data.Status = "failed"
			resp.Data.PaidAt = nil
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(resp)

		log.Printf("Processed mock verification: %s -> %s", reference, resp.Data.Status)
	})

	http.HandleFunc("/refund", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":true,"message":"Refund has been queued for processing"}`))
	})

	log.Printf("Mock gateway server starting on %s...", port)
	if err := http.ListenAndServe(port, nil); err != nil {
		log.Fatal(err)
	}
}
