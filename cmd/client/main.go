package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"gitlab.com/dirk.krummacker/contacts-api/pkg/model"
)

var (
	baseURL     = flag.String("url", "http://localhost:8080", "the base URL of the contacts API")
	email       = flag.String("email", "", "the email of a confirmed account")
	password    = flag.String("password", "", "the password of that account")
	accessToken string
)

// Usage example on the command line:
// > go run main.go -email=bob@example.com -password=secret1
func main() {
	flag.Parse()
	accessToken = login()

	fmt.Println()
	fmt.Println("  Elements      POST       PUT       GET    DELETE ")
	fmt.Println("---------------------------------------------------")
	sizes := []int{100, 500, 1000, 5000}
	run := time.Now().UnixMilli()
	for _, loops := range sizes {
		ids := make([]int64, 0, loops)
		fmt.Printf("%10d", loops)
		{
			// POST requests
			var duration int64
			for i := 0; i < loops; i++ {
				id, d := sendPostRequest(contactBody(run, loops, i, "Marcus"))
				ids = append(ids, id)
				duration += d
			}
			fmt.Printf("%10d", duration/int64(loops*1000))
		}
		{
			// PUT requests
			f := func(i int, id int64) int64 {
				return sendPutGetDeleteRequest(id, http.MethodPut, contactBody(run, loops, i, "Antonius"))
			}
			callInLoop(ids, f)
		}
		{
			// GET requests
			f := func(_ int, id int64) int64 {
				return sendPutGetDeleteRequest(id, http.MethodGet, nil)
			}
			callInLoop(ids, f)
		}
		{
			// DELETE requests
			f := func(_ int, id int64) int64 {
				return sendPutGetDeleteRequest(id, http.MethodDelete, nil)
			}
			callInLoop(ids, f)
		}
		fmt.Println()
	}
}

// contactBody returns a contact whose email and phone number are unique within the run.
func contactBody(run int64, loops, i int, name string) io.Reader {
	contact := model.Contact{
		Name:           name,
		SureName:       "Antonius",
		Email:          fmt.Sprintf("marcus.%d.%d.%d@example.com", run, loops, i),
		PhoneNumber:    fmt.Sprintf("+39%06d%06d", loops, i),
		Birthday:       "0027-11-09",
		AdditionalData: "triumvir",
	}
	body, err := json.Marshal(contact)
	if err != nil {
		panic(err)
	}
	return bytes.NewReader(body)
}

func callInLoop(ids []int64, f func(i int, id int64) int64) {
	order := rand.Perm(len(ids))
	var duration int64
	for _, i := range order {
		duration += f(i, ids[i])
	}
	fmt.Printf("%10d", duration/int64(len(ids)*1000))
}

func login() string {
	form := url.Values{"username": {*email}, "password": {*password}}
	req, err := http.NewRequest(http.MethodPost, *baseURL+"/api/auth/login", strings.NewReader(form.Encode()))
	if err != nil {
		panic(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resBody, _ := send(req)
	var tokens model.TokenPair
	if err := json.Unmarshal(resBody, &tokens); err != nil || tokens.AccessToken == "" {
		fmt.Println("could not sign in", string(resBody))
		panic(fmt.Errorf("sign in failed: %w", err))
	}
	return tokens.AccessToken
}

func sendPostRequest(bodyReader io.Reader) (int64, int64) {
	requestURL := *baseURL + "/api/users/"
	resBody, duration := sendRequest(http.MethodPost, requestURL, bodyReader)
	var contact model.Contact
	err := json.Unmarshal(resBody, &contact)
	if err != nil {
		fmt.Println("could not unmarshal JSON", err)
		panic(err)
	}
	return contact.Id, duration
}

func sendPutGetDeleteRequest(id int64, method string, bodyReader io.Reader) int64 {
	requestURL := fmt.Sprintf("%s/api/users/%d", *baseURL, id)
	_, duration := sendRequest(method, requestURL, bodyReader)
	return duration
}

func sendRequest(method string, requestURL string, bodyReader io.Reader) ([]byte, int64) {
	req, err := http.NewRequest(method, requestURL, bodyReader)
	if err != nil {
		fmt.Println("could not create request", err)
		panic(err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	if bodyReader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return send(req)
}

func send(req *http.Request) ([]byte, int64) {
	before := time.Now().UnixNano()
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Println("error making http request", err)
		panic(err)
	}
	defer res.Body.Close()
	resBody, err := io.ReadAll(res.Body)
	if err != nil {
		fmt.Println("could not read response body", err)
		panic(err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		var apiErr model.Error
		_ = json.Unmarshal(resBody, &apiErr)
		fmt.Println()
		fmt.Println(req.Method, req.URL, res.Status, apiErr.Detail)
	}
	after := time.Now().UnixNano()
	return resBody, after - before
}
