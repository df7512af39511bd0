package main

import (
	"net/http"

	"github.com/bmizerany/pat"
	"github.com/justinas/alice"

	"estateBack/internal/handlers"
)

func (app *application) routes() http.Handler {
	standardMiddleware := alice.New(app.recoverPanic, app.logRequest, secureHeaders)
	jsonMiddleware := standardMiddleware.Append(makeResponseJSON)

	mux := pat.New()

	// Listings
	mux.Post("/listings", jsonMiddleware.ThenFunc(app.listingHandler.CreateListing))
	mux.Get("/listings", jsonMiddleware.ThenFunc(app.listingHandler.GetListings))
	mux.Get("/listings/:id", jsonMiddleware.ThenFunc(app.listingHandler.GetListingByID))
	mux.Del("/listings/:id", jsonMiddleware.ThenFunc(app.listingHandler.DeleteListing))

	// Properties (legacy paths)
	mux.Post("/properties", jsonMiddleware.ThenFunc(app.listingHandler.CreateListing))
	mux.Get("/properties", jsonMiddleware.ThenFunc(app.listingHandler.GetListings))
	mux.Del("/properties/:id", jsonMiddleware.ThenFunc(app.listingHandler.DeleteListing))

	// Photos
	mux.Get("/listing_photos/:id", standardMiddleware.ThenFunc(app.photoHandler.ServeListingPhoto))
	mux.Get("/property_photos/:id", standardMiddleware.ThenFunc(app.photoHandler.ServeListingPhoto))

	// "/" matches every GET path in pat, so it goes last.
	mux.Get("/", standardMiddleware.ThenFunc(handlers.Home))

	return mux
}
