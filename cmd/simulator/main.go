// Simulator drives a running backend the way a fleet does: it registers
// buses, feeds odometer updates, and runs maintenance orders through their
// lifecycle so thresholds and notifications can be observed end to end.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
)

// Bus mirrors the API representation of a fleet vehicle.
type Bus struct {
	ID        string `json:"id"`
	Plate     string `json:"plate"`
	KmCurrent int64  `json:"km_current"`
	Status    string `json:"status"`
}

// MaintenanceOrder mirrors the API representation of an order.
type MaintenanceOrder struct {
	ID     string `json:"id"`
	BusID  string `json:"bus_id"`
	Status string `json:"status"`
}

var authToken string

func authorizedRequest(method, url string, body interface{}) (*http.Response, error) {
	var buf *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		buf = bytes.NewBuffer(data)
	} else {
		buf = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, url, buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}
	client := &http.Client{Timeout: 10 * time.Second}
	return client.Do(req)
}

// randomPlate builds a plate in the ABC123 form used by the fleet.
func randomPlate(r *rand.Rand) string {
	letters := make([]byte, 3)
	for i := range letters {
		letters[i] = byte('A' + r.Intn(26))
	}
	return fmt.Sprintf("%s%03d", letters, r.Intn(1000))
}

// nextKm advances an odometer by a plausible daily distance. The step is
// always positive so the mileage invariant holds.
func nextKm(current int64, r *rand.Rand) int64 {
	return current + 50 + int64(r.Intn(251))
}

func createBus(apiURL string, r *rand.Rand) (*Bus, error) {
	payload := map[string]interface{}{
		"plate":        randomPlate(r),
		"km_initial":   int64(r.Intn(40000)),
		"date_enabled": time.Now().UTC().AddDate(0, 0, -r.Intn(60)).Format("2006-01-02"),
	}

	resp, err := authorizedRequest(http.MethodPost, apiURL+"/buses", payload)
	if err != nil {
		return nil, fmt.Errorf("failed to create bus: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("bus creation failed with status: %d", resp.StatusCode)
	}

	var bus Bus
	if err := json.NewDecoder(resp.Body).Decode(&bus); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	log.WithFields(log.Fields{
		"bus_id": bus.ID,
		"plate":  bus.Plate,
		"km":     bus.KmCurrent,
	}).Info("Created bus")
	return &bus, nil
}

func sendKmUpdate(apiURL string, bus *Bus, r *rand.Rand) {
	bus.KmCurrent = nextKm(bus.KmCurrent, r)
	resp, err := authorizedRequest(http.MethodPatch, apiURL+"/buses/"+bus.ID+"/km", map[string]int64{"km_current": bus.KmCurrent})
	if err != nil {
		log.WithError(err).Error("Failed to send km update")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		var updated Bus
		if err := json.NewDecoder(resp.Body).Decode(&updated); err == nil {
			bus.Status = updated.Status
		}
	}
	log.WithFields(log.Fields{
		"bus_id": bus.ID,
		"km":     bus.KmCurrent,
		"status": bus.Status,
	}).Info("Sent km update")
}

// runMaintenanceCycle occasionally pushes an order through its lifecycle so
// the bus's maintenance history restarts and its status resets.
func runMaintenanceCycle(apiURL string, bus *Bus) {
	if bus.Status != "PROXIMO" && bus.Status != "VENCIDO" {
		return
	}

	resp, err := authorizedRequest(http.MethodPost, apiURL+"/maintenance", map[string]string{
		"bus_id": bus.ID,
		"type":   "PREVENTIVE",
		"notes":  "simulated service",
	})
	if err != nil {
		log.WithError(err).Error("Failed to create maintenance order")
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return
	}

	var order MaintenanceOrder
	if err := json.NewDecoder(resp.Body).Decode(&order); err != nil {
		log.WithError(err).Error("Failed to decode maintenance order")
		return
	}

	for _, step := range []string{"open", "close"} {
		stepResp, err := authorizedRequest(http.MethodPatch, apiURL+"/maintenance/"+order.ID+"/"+step, nil)
		if err != nil {
			log.WithError(err).WithField("step", step).Error("Order transition failed")
			return
		}
		stepResp.Body.Close()
	}

	bus.Status = "OK"
	log.WithFields(log.Fields{"bus_id": bus.ID, "order_id": order.ID}).Info("Completed maintenance cycle")
}

func simulateBus(apiURL string, bus *Bus, interval time.Duration, seed int64) {
	r := rand.New(rand.NewSource(seed))
	tick := time.NewTicker(interval)
	defer tick.Stop()
	for range tick.C {
		sendKmUpdate(apiURL, bus, r)
		if r.Intn(5) == 0 {
			runMaintenanceCycle(apiURL, bus)
		}
	}
}

func main() {
	authToken = os.Getenv("SIM_AUTH_TOKEN")

	fleetSize := 10
	if val := os.Getenv("FLEET_SIZE"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			fleetSize = n
		}
	}

	apiURL := os.Getenv("API_BASE_URL")
	if apiURL == "" {
		apiURL = "http://localhost:8080/api"
	}

	interval := 2 * time.Second
	if v := os.Getenv("SIM_TICK_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 1 {
			interval = time.Duration(n) * time.Second
		}
	}

	log.WithFields(log.Fields{
		"fleet_size": fleetSize,
		"api_url":    apiURL,
		"interval":   interval,
	}).Info("Starting fleet simulation")

	seeder := rand.New(rand.NewSource(time.Now().UnixNano()))
	buses := make([]*Bus, 0, fleetSize)
	for i := 0; i < fleetSize; i++ {
		bus, err := createBus(apiURL, seeder)
		if err != nil {
			log.WithError(err).Error("Failed to create bus")
			continue
		}
		buses = append(buses, bus)
	}

	log.WithField("created_buses", len(buses)).Info("Bus creation completed")
	if len(buses) == 0 {
		log.Error("No buses created. Ensure SIM_AUTH_TOKEN is valid and API is reachable. Exiting.")
		time.Sleep(2 * time.Second)
		return
	}

	for i, bus := range buses {
		go simulateBus(apiURL, bus, interval, time.Now().UnixNano()+int64(i))
	}

	log.Info("Odometer simulation started")
	select {} // Block forever
}
