package presenter

import (
	"fmt"
	"html"
	"strings"
)

// ══════════════════════════════════════════════════════════════════════════════
// FIXED TEXTS
// ══════════════════════════════════════════════════════════════════════════════

const (
	MsgBlocked = "⛔ You are blocked due to suspected spam. To appeal this decision, " +
		"please use the /feedback command to contact our admin."

	MsgPhoneRequired = "⚠️ For security reasons, you need to verify your phone number before using this command.\n\n" +
		"Please use /start or /verify to verify your phone number first."

	MsgAutoBlocked = "⚠️ You have been automatically blocked due to sending too many commands in a short period. " +
		"To appeal this block, please use the /feedback command to contact our admin."

	MsgSlowDown = "⚠️ You are sending commands too quickly. Please wait a minute and try again."

	MsgInternalError = "❌ Something went wrong while processing your request. Please try again later."

	MsgNoPermission = "⚠️ You don't have permission to use this command."

	MsgCancel = "Bye! Hope to see you around."

	MsgCourseNotFound = "Course not found."

	MsgRequestContact = "📱 To verify your identity and prevent spam, please share your contact information " +
		"by clicking the button below."

	MsgContactMismatch = "❌ Please share your own contact using the button below."

	MsgPhoneVerified = "✅ Your phone number has been verified successfully! You can now use all features of Attendio Bot."

	MsgAccountCreated = "✅ Thank you! Your account has been created. Please add your first course using /add_course."

	MsgNoCoursesMark   = "No courses found. Please add a new course first using /add_course command."
	MsgNoCourses       = "No courses found. Please add a course first using /add_course."
	MsgChooseMark      = "Please choose a course:"
	MsgChooseDelete    = "Please choose a course to delete:"
	MsgChooseEdit      = "Please choose a course to edit attendance:"
	MsgDeleteCancelled = "Course deletion cancelled."

	MsgAskNickname = "Please enter the course nickname:"

	MsgDuplicateNickname = "This course nickname already exists. Please choose a different nickname by selecting " +
		"/add_course or delete the currently existing course by /delete_course."

	MsgInvalidNickname = "❌ A course nickname must be 1 to 30 characters long and cannot contain ':'. " +
		"Please try again with /add_course."

	MsgFeedbackPrompt = "Please share your feedback about Attendio bot. Your insights help us improve!"

	MsgFeedbackPromptBlocked = "You have been blocked due to suspected spam. You can use this feedback form to " +
		"contact our admin and appeal your block. Please explain why you believe your block should be removed:"

	MsgFeedbackThanks = "Your feedback has been recorded! We appreciate your help in making Attendio better."

	MsgFeedbackBlockedSent = "Your message has been sent to our admin. We will reach you back soon."

	MsgFeedbackNoAdmin = "Thanks for your feedback! However, our admin notification system is not configured yet."

	MsgAnnouncePrompt = "📣 Please enter the announcement message you want to send to all users.\n\n" +
		"This will be sent to everyone using the bot. Use /cancel to abort."

	MsgBlockedNotice = "You have been blocked from using this bot due to suspicious activity. " +
		"Contact the administrator if you believe this is an error."

	MsgUnblockedNotice = "You have been unblocked and can now use the bot again."

	MsgInvalidUserID = "❌ Invalid user ID format. User ID must be a number."
)

// helpText lists the user commands.
const helpText = "/start - Start your journey with Attendio Bot\n" +
	"/check_attendance - Get a list of attendance in all courses you have registered for\n" +
	"/mark_attendance - Mark attendance for a course\n" +
	"/edit_attendance - Edit a mistake done while marking attendance for a course\n" +
	"/add_course - Add a new course which you have registered for\n" +
	"/delete_course - Delete a course which you have dropped\n" +
	"/manage_absences - Get suggestions for safe classes to skip\n" +
	"/feedback - Provide feedback to help us improve Attendio\n" +
	"/help - Check out all the commands which Attendio can help you into\n"

const adminHelpText = "\n<b>Admin Commands:</b>\n" +
	"<code>/block [user_id]</code> - Block a user from using the bot\n" +
	"<code>/unblock [user_id]</code> - Unblock a previously blocked user\n" +
	"<code>/reply [user_id] [message]</code> - Reply directly to a user\n" +
	"<code>/announce</code> - Send an announcement to all users\n" +
	"<code>/logs [hours]</code> - Get logs for the last N hours (default: 24)\n"

// FormatHelp returns the help text. The admin variant is HTML; the user one is plain.
func FormatHelp(admin bool) string {
	if admin {
		return helpText + adminHelpText
	}
	return helpText
}

// MsgUnknownInput answers text the bot did not expect.
const MsgUnknownInput = "I'm sorry, I didn't understand that command. Here are the available commands:\n\n" +
	"/start - Start your journey with Attendio Bot\n" +
	"/check_attendance - Get a list of attendance in all courses\n" +
	"/mark_attendance - Mark attendance for a course\n" +
	"/edit_attendance - Edit a mistake done while marking attendance\n" +
	"/add_course - Add a new course\n" +
	"/delete_course - Delete a course\n" +
	"/manage_absences - Get suggestions for safe classes to skip\n" +
	"/feedback - Provide feedback about the bot\n" +
	"/help - Check out all the commands Attendio can help you with"

// ══════════════════════════════════════════════════════════════════════════════
// GREETINGS
// ══════════════════════════════════════════════════════════════════════════════

// FormatWelcome greets a user on /start.
func FormatWelcome(firstName string) string {
	return fmt.Sprintf("Welcome to Attendio Bot, %s!", firstName)
}

// FormatWelcomeBack confirms the chat id of a verified user.
func FormatWelcomeBack(chatID int64) string {
	return fmt.Sprintf("Welcome back! Your chat ID has been updated to %d.", chatID)
}

// FormatChatID answers /get_chat_id.
func FormatChatID(chatID int64, known bool) string {
	if known {
		return fmt.Sprintf("Your chat ID has been updated to %d.", chatID)
	}
	return fmt.Sprintf("Your chat ID has been saved as %d.", chatID)
}

// FormatMarkPrompt asks Present or Absent for a course.
func FormatMarkPrompt(code string) string {
	return fmt.Sprintf("Mark attendance for %s:", code)
}

// FormatDeletePrompt asks to confirm a deletion.
func FormatDeletePrompt(code string) string {
	return fmt.Sprintf("Are you sure you want to delete course %s?", code)
}

// ══════════════════════════════════════════════════════════════════════════════
// ADMIN AND FEEDBACK (HTML)
// ══════════════════════════════════════════════════════════════════════════════

// UserMention links to a Telegram user by id.
func UserMention(id int64, name string) string {
	return fmt.Sprintf(`<a href="tg://user?id=%d">%s</a>`, id, html.EscapeString(name))
}

// FormatFeedback is the admin copy of a feedback message.
func FormatFeedback(id int64, name, stamp, text string, blocked bool) string {
	var b strings.Builder
	if blocked {
		b.WriteString("📬 <b>Message from BLOCKED User:</b>\n\n")
	} else {
		b.WriteString("📬 <b>New Feedback Received:</b>\n\n")
	}
	fmt.Fprintf(&b, "👤 From: %s (ID: %d)\n", UserMention(id, name), id)
	fmt.Fprintf(&b, "⏰ Time: %s\n\n", stamp)
	if blocked {
		fmt.Fprintf(&b, "📝 <b>Message:</b>\n%s\n\n", html.EscapeString(text))
	} else {
		fmt.Fprintf(&b, "📝 <b>Feedback:</b>\n%s\n\n", html.EscapeString(text))
	}
	fmt.Fprintf(&b, " Reply %s using <code>/reply %d [message]</code>\n\n", html.EscapeString(name), id)
	if blocked {
		fmt.Fprintf(&b, "<i>This user is currently blocked. Use <code>/unblock %d</code> to unblock them.</i>", id)
	}
	return b.String()
}

// FormatAdminReply is what a user receives from /reply.
func FormatAdminReply(message string) string {
	return fmt.Sprintf("📬 <b>Reply from Admin:</b>\n\n%s\n\n<i>To respond, use the /feedback command.</i>",
		html.EscapeString(message))
}

// FormatAnnouncement wraps a broadcast. The admin text is sent as HTML unchanged.
func FormatAnnouncement(text string) string {
	return fmt.Sprintf("📣 <b>ANNOUNCEMENT FROM ADMIN</b> 📣\n\n%s\n\n"+
		"<i>If you have questions, use /feedback to contact the admin.</i>", text)
}

// FormatAnnouncementStats reports a finished broadcast.
func FormatAnnouncementStats(total, delivered, failed int) string {
	return fmt.Sprintf("✅ Announcement sent successfully!\n\n📊 <b>Statistics:</b>\n"+
		"• Total users: %d\n• Successfully delivered: %d\n• Failed to deliver: %d", total, delivered, failed)
}

// FormatUsage renders a usage hint.
func FormatUsage(usage string) string {
	return fmt.Sprintf("Usage: <code>%s</code>", usage)
}

// FailureText reports a failed action without exposing the cause.
func FailureText(action string) string {
	return "❌ Error " + action + ". Please try again later."
}
