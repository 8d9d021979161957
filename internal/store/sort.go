package store

import (
	"sort"

	"digilib/internal/models"
)

// SortBooks sortuje książki w kolejności wymaganej przez ListBooks
func SortBooks(books []*models.Book) {
	sort.SliceStable(books, func(i, j int) bool {
		if books[i].Title != books[j].Title {
			return books[i].Title < books[j].Title
		}
		return books[i].ID < books[j].ID
	})
}

// SortCopies sortuje egzemplarze po numerze
func SortCopies(copies []*models.Copy) {
	sort.SliceStable(copies, func(i, j int) bool { return copies[i].Serial < copies[j].Serial })
}

// SortLoans sortuje wypożyczenia po dacie wypożyczenia
func SortLoans(loans []*models.Loan) {
	sort.SliceStable(loans, func(i, j int) bool {
		if !loans[i].CheckoutDate.Equal(loans[j].CheckoutDate) {
			return loans[i].CheckoutDate.Before(loans[j].CheckoutDate)
		}
		return loans[i].ID < loans[j].ID
	})
}

// SortRequests sortuje prośby po dacie złożenia
func SortRequests(reqs []*models.Request) {
	sort.SliceStable(reqs, func(i, j int) bool {
		if !reqs[i].RequestDate.Equal(reqs[j].RequestDate) {
			return reqs[i].RequestDate.Before(reqs[j].RequestDate)
		}
		return reqs[i].ID < reqs[j].ID
	})
}

// SortReviews sortuje recenzje od najnowszej
func SortReviews(reviews []*models.Review) {
	sort.SliceStable(reviews, func(i, j int) bool {
		if !reviews[i].CreatedAt.Equal(reviews[j].CreatedAt) {
			return reviews[i].CreatedAt.After(reviews[j].CreatedAt)
		}
		return reviews[i].ID < reviews[j].ID
	})
}
