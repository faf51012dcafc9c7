package utils

import (
	"fmt"
	"log"
	"net/smtp"
	"os"
	"strings"
)

var (
	emailFrom     = os.Getenv("EMAIL_FROM")
	emailPassword = os.Getenv("EMAIL_PASSWORD")
	smtpHost      = os.Getenv("SMTP_HOST")
	smtpPort      = os.Getenv("SMTP_PORT")
	companyName   = "TransitGo"
	baseURL       = os.Getenv("BASE_URL")
)

// Common header template for all emails
const emailHeader = `
<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
	<meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333; margin: 0; padding: 0;">
	<div style="max-width: 600px; margin: 0 auto; padding: 20px;">
		<div style="text-align: center; margin-bottom: 30px; background-color: #f9f9f9; padding: 20px;">
			<h2 style="color: #1565C0; margin: 0;">TransitGo</h2>
		</div>
`

// Common footer template for all emails
const emailFooter = `
		<div style="text-align: center; margin-top: 20px; font-size: 12px; color: #666; border-top: 1px solid #eee; padding-top: 20px;">
			<p>This is an automated message, please do not reply to this email.</p>
			<p>© 2026 TransitGo. All rights reserved.</p>
		</div>
	</div>
</body>
</html>
`

func sendEmail(to []string, subject, body string) error {
	if emailFrom == "" || emailPassword == "" || smtpHost == "" || smtpPort == "" {
		return fmt.Errorf("email configuration not set")
	}

	// Headers
	headers := make(map[string]string)
	headers["From"] = fmt.Sprintf("%s <%s>", companyName, emailFrom)
	headers["To"] = strings.Join(to, ",")
	headers["Subject"] = subject
	headers["MIME-Version"] = "1.0"
	headers["Content-Type"] = "text/html; charset=UTF-8"
	headers["X-Mailer"] = "TransitGo-Mailer"

	// Build message
	message := ""
	for key, value := range headers {
		message += fmt.Sprintf("%s: %s\r\n", key, value)
	}
	message += "\r\n" + body

	// Authentication
	auth := smtp.PlainAuth("", emailFrom, emailPassword, smtpHost)

	// Send email
	err := smtp.SendMail(smtpHost+":"+smtpPort, auth, emailFrom, to, []byte(message))
	if err != nil {
		log.Printf("Failed to send email: %v", err)
		return err
	}

	log.Printf("Successfully sent email to recipients: %v", to)
	return nil
}

func SendBookingCreatedEmail(passengerEmail, ticketNumber, routeName string, seats []string, total float64) error {
	subject := "Reservation Received - TransitGo"
	body := fmt.Sprintf(emailHeader+`
				<div style="background-color: #f9f9f9; padding: 20px; border-radius: 5px;">
					<h1 style="color: #2c3e50; text-align: center;">Reservation Received</h1>
					<p>Hello,</p>
					<p>Your seats <strong>%s</strong> on <strong>%s</strong> are held under ticket <strong>%s</strong>.</p>
					<p>Total: <strong>%.2f</strong>. Please complete payment within 5 minutes or the seats will be released.</p>
					<p>Best regards,<br>The TransitGo Team</p>
				</div>`+emailFooter,
		strings.Join(seats, ", "), routeName, ticketNumber, total)

	return sendEmail([]string{passengerEmail}, subject, body)
}

func SendBookingConfirmedEmail(passengerEmail, ticketNumber, routeName string) error {
	subject := "Booking Confirmed - TransitGo"
	body := fmt.Sprintf(emailHeader+`
				<div style="background-color: #f9f9f9; padding: 20px; border-radius: 5px;">
					<h1 style="color: #2c3e50; text-align: center;">Booking Confirmed</h1>
					<p>Hello,</p>
					<p>Payment received. Your ticket <strong>%s</strong> for <strong>%s</strong> is confirmed.</p>
					<div style="text-align: center; margin: 30px 0;">
						<a href="%s/tickets" style="background-color: #1565C0; color: white; padding: 12px 25px; text-decoration: none; border-radius: 5px;">View Your Ticket</a>
					</div>
					<p>Best regards,<br>The TransitGo Team</p>
				</div>`+emailFooter,
		ticketNumber, routeName, baseURL)

	return sendEmail([]string{passengerEmail}, subject, body)
}

func SendBookingCancelledEmail(passengerEmail, ticketNumber string, refund float64) error {
	subject := "Booking Cancelled - TransitGo"
	body := fmt.Sprintf(emailHeader+`
				<div style="background-color: #f9f9f9; padding: 20px; border-radius: 5px;">
					<h1 style="color: #2c3e50; text-align: center;">Booking Cancelled</h1>
					<p>Hello,</p>
					<p>Your booking <strong>%s</strong> has been cancelled. Refund amount: <strong>%.2f</strong>.</p>
					<p>Best regards,<br>The TransitGo Team</p>
				</div>`+emailFooter,
		ticketNumber, refund)

	return sendEmail([]string{passengerEmail}, subject, body)
}

func SendDeviationAlertEmail(companyEmail, busPlate, routeName, driverName, address, trackingLink string) error {
	subject := "Route Deviation Alert - TransitGo"
	body := fmt.Sprintf(emailHeader+`
				<div style="background-color: #fff3f3; padding: 20px; border-radius: 5px;">
					<h1 style="color: #c0392b; text-align: center;">Route Deviation Alert</h1>
					<p>Bus <strong>%s</strong> on route <strong>%s</strong> (driver: <strong>%s</strong>) has left its corridor.</p>
					<p>Last reported near: <strong>%s</strong></p>
					<div style="text-align: center; margin: 30px 0;">
						<a href="%s" style="background-color: #c0392b; color: white; padding: 12px 25px; text-decoration: none; border-radius: 5px;">Track Bus</a>
					</div>
				</div>`+emailFooter,
		busPlate, routeName, driverName, address, trackingLink)

	return sendEmail([]string{companyEmail}, subject, body)
}
