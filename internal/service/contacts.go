package service

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gitlab.com/dirk.krummacker/contacts-api/internal/auth"
	"gitlab.com/dirk.krummacker/contacts-api/internal/metrics"
	"gitlab.com/dirk.krummacker/contacts-api/internal/model"
	"gitlab.com/dirk.krummacker/contacts-api/internal/repository"
)

// listContactsQuery holds the paging parameters of the contact list.
type listContactsQuery struct {
	Limit  int `form:"limit,default=10" binding:"min=0,max=300"`
	Offset int `form:"offset,default=0" binding:"min=0"`
}

// contactURI is the contact id taken from the request path.
type contactURI struct {
	ID int64 `uri:"id" binding:"required,min=1"`
}

// findContacts responds with a page of contacts as JSON, ordered by id.
//
// The URL parameter 'limit' specifies how many contacts are returned, 10 if omitted and at most
// 300. The URL parameter 'offset' specifies how many contacts are skipped in the beginning.
// Together they implement paging. A page past the end is empty.
//
// REST API calls:
//
//	> curl "http://localhost:8080/api/users/"
//	> curl "http://localhost:8080/api/users/?limit=20&offset=60"
func (h *handler) findContacts(c *gin.Context) {
	var query listContactsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		abortWithValidation(c, inQuery, err)
		return
	}
	contacts, err := h.Contacts.List(c.Request.Context(), query.Limit, query.Offset)
	if err != nil {
		abortWithServerError(c, "listing contacts failed", err)
		return
	}
	c.IndentedJSON(http.StatusOK, contacts)
}

// findContactByID locates the contact whose ID value matches the id parameter of the request URL,
// then returns that contact as a response.
//
// Example REST API call:
//
//	> curl http://localhost:8080/api/users/56
func (h *handler) findContactByID(c *gin.Context) {
	var uri contactURI
	if err := c.ShouldBindUri(&uri); err != nil {
		abortWithValidation(c, inPath, err)
		return
	}
	contact, err := h.Contacts.GetByID(c.Request.Context(), uri.ID)
	if err != nil {
		h.abortWithContactError(c, err)
		return
	}
	c.IndentedJSON(http.StatusOK, contact)
}

// createContact inserts the contact specified in the request's JSON into the database. It responds
// with the full contact data including the newly assigned id. The contact belongs to the
// authenticated user.
//
// Example REST API call:
//
//	> curl http://localhost:8080/api/users/ --request "POST" --include --header "Authorization: Bearer $TOKEN" --header "Content-Type: application/json" --data '{"name": "Hans", "sure_name": "Wurst", "email": "hans@example.com", "phone_number": "0501234567", "birthday": "1969-03-02", "additional_data": ""}'
func (h *handler) createContact(c *gin.Context) {
	var req model.ContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithValidation(c, inBody, err)
		return
	}
	contact, err := h.Contacts.Create(c.Request.Context(), auth.CurrentUser(c).Id, req)
	if err != nil {
		h.abortWithContactError(c, err)
		return
	}
	metrics.ContactsCreated.Inc()
	c.IndentedJSON(http.StatusCreated, contact)
}

// updateContactByID replaces all fields of the contact whose ID value matches the id parameter of
// the request URL and responds with the new version of the contact. Only the owner may update a
// contact.
//
// Example REST API call:
//
//	> curl http://localhost:8080/api/users/56 --request "PUT" --include --header "Authorization: Bearer $TOKEN" --header "Content-Type: application/json" --data '{"name": "Hans", "sure_name": "Wurst", "email": "hans@example.com", "phone_number": "0509876543"}'
func (h *handler) updateContactByID(c *gin.Context) {
	var uri contactURI
	if err := c.ShouldBindUri(&uri); err != nil {
		abortWithValidation(c, inPath, err)
		return
	}
	var req model.ContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithValidation(c, inBody, err)
		return
	}
	contact, err := h.Contacts.Update(c.Request.Context(), auth.CurrentUser(c).Id, uri.ID, req)
	if err != nil {
		h.abortWithContactError(c, err)
		return
	}
	c.IndentedJSON(http.StatusOK, contact)
}

// deleteContactByID deletes the contact whose ID value matches the id parameter of the request URL
// from the database. Only the owner may delete a contact.
//
// Example REST API call:
//
//	> curl http://localhost:8080/api/users/56 --request "DELETE" --header "Authorization: Bearer $TOKEN"
func (h *handler) deleteContactByID(c *gin.Context) {
	var uri contactURI
	if err := c.ShouldBindUri(&uri); err != nil {
		abortWithValidation(c, inPath, err)
		return
	}
	if err := h.Contacts.Delete(c.Request.Context(), auth.CurrentUser(c).Id, uri.ID); err != nil {
		h.abortWithContactError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) abortWithContactError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrContactNotFound):
		abortWithDetail(c, http.StatusNotFound, "Not found!")
	case errors.Is(err, repository.ErrDuplicateContact):
		abortWithDetail(c, http.StatusConflict, "Contact with this email or phone number already exists")
	default:
		abortWithServerError(c, "contact operation failed", err)
	}
}
