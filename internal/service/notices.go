package service

import "fmt"

const currency = "₹"

func saleBuyerNotice(book, seller string, price int64) string {
	return fmt.Sprintf("The book %s is sold to you from %s for %s%d", book, seller, currency, price)
}

func saleSellerNotice(book, buyer string, price int64) string {
	return fmt.Sprintf("Your book %s is sold out to %s for %s%d", book, buyer, currency, price)
}

func auctionWonNotice(book string, amount int64) string {
	return fmt.Sprintf("The bid amount %s%d placed by you for \"%s\" has won the auction.", currency, amount, book)
}

func auctionCompletedNotice(book string) string {
	return fmt.Sprintf("The auction for \"%s\" is completed.", book)
}

func auctionFailedNotice(book string) string {
	return fmt.Sprintf("Auction failed for \"%s\" due to absence of bidders.", book)
}

func auctionSaleBuyerNotice(book, seller string, amount int64, admin string) string {
	return fmt.Sprintf("The book %s is sold to you from %s for a bid amount %s%d by the admin : %s.", book, seller, currency, amount, admin)
}

func auctionSaleSellerNotice(book, buyer string, amount int64, admin string) string {
	return fmt.Sprintf("Your book %s is sold to %s for a bid amount %s%d by the admin : %s.", book, buyer, currency, amount, admin)
}
